package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash algorithm names accepted by NewHashProvider.
const (
	HashSHA256   = "sha256"
	HashXXHash64 = "xxhash64"
)

// HashProvider computes document ids from source text.
type HashProvider interface {
	// Name is the algorithm name used in persisted query receipts.
	Name() string
	// Format describes the textual encoding of the hash.
	Format() string
	Hash(source []byte) string
}

// NewHashProvider returns the provider for the named algorithm.
func NewHashProvider(name string) (HashProvider, error) {
	switch name {
	case "", HashSHA256:
		return sha256Provider{}, nil
	case HashXXHash64:
		return xxhashProvider{}, nil
	}
	return nil, fmt.Errorf("unknown hash algorithm %q", name)
}

type sha256Provider struct{}

func (sha256Provider) Name() string   { return HashSHA256 }
func (sha256Provider) Format() string { return "hex" }

func (sha256Provider) Hash(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

type xxhashProvider struct{}

func (xxhashProvider) Name() string   { return HashXXHash64 }
func (xxhashProvider) Format() string { return "hex" }

func (xxhashProvider) Hash(source []byte) string {
	return strconv.FormatUint(xxhash.Sum64(source), 16)
}
