// Package config loads the server configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/graphcore/internal/complexity"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/metrics"
	"github.com/hanpama/graphcore/internal/otel"
	"github.com/hanpama/graphcore/internal/persisted"
	"github.com/hanpama/graphcore/internal/pipeline"
)

// PathEnv names the variable consulted when Load is given no path.
const PathEnv = "GRAPHCORE_CONFIG"

type Config struct {
	Server              Server              `yaml:"server" envPrefix:"SERVER_"`
	Schema              Schema              `yaml:"schema" envPrefix:"SCHEMA_"`
	Execution           Execution           `yaml:"execution" envPrefix:"EXECUTION_"`
	Validation          Validation          `yaml:"validation" envPrefix:"VALIDATION_"`
	Cache               Cache               `yaml:"cache" envPrefix:"CACHE_"`
	PersistedOperations PersistedOperations `yaml:"persisted_operations" envPrefix:"PERSISTED_OPERATIONS_"`
	Complexity          complexity.Limits   `yaml:"complexity" envPrefix:"COMPLEXITY_"`
	Log                 logging.Config      `yaml:"log" envPrefix:"LOG_"`
	Telemetry           otel.Config         `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Metrics             metrics.Config      `yaml:"metrics" envPrefix:"METRICS_"`
}

type Server struct {
	Addr            string        `yaml:"addr" env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Pretty          bool          `yaml:"pretty" env:"PRETTY"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"MAX_BODY_BYTES" envDefault:"1048576"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS"`
	MetadataHeaders []string      `yaml:"metadata_headers" env:"METADATA_HEADERS"`
	GraphiQL        bool          `yaml:"graphiql" env:"GRAPHIQL" envDefault:"true"`
}

type Schema struct {
	Path string `yaml:"path" env:"PATH"`
	Name string `yaml:"name" env:"NAME" envDefault:"default"`
	// Data is a JSON file with the root values served by the static runtime.
	Data string `yaml:"data" env:"DATA"`
}

type Execution struct {
	Timeout                 time.Duration `yaml:"timeout" env:"TIMEOUT" envDefault:"30s"`
	IncludeExceptionDetails bool          `yaml:"include_exception_details" env:"INCLUDE_EXCEPTION_DETAILS"`
	AllowedOperations       []string      `yaml:"allowed_operations" env:"ALLOWED_OPERATIONS" envDefault:"query,mutation,subscription"`
	Introspection           bool          `yaml:"introspection" env:"INTROSPECTION" envDefault:"false"`
	BatchFailFast           bool          `yaml:"batch_fail_fast" env:"BATCH_FAIL_FAST"`
	BatchParallelism        int           `yaml:"batch_parallelism" env:"BATCH_PARALLELISM" envDefault:"4"`
}

// OperationKinds converts AllowedOperations.
func (e Execution) OperationKinds() []ast.Operation {
	kinds := make([]ast.Operation, 0, len(e.AllowedOperations))
	for _, k := range e.AllowedOperations {
		kinds = append(kinds, ast.Operation(strings.ToLower(strings.TrimSpace(k))))
	}
	return kinds
}

type Validation struct {
	MaxErrors       int            `yaml:"max_errors" env:"MAX_ERRORS" envDefault:"100"`
	CycleDefaultMax int            `yaml:"cycle_default_max" env:"CYCLE_DEFAULT_MAX"`
	CycleMaxima     map[string]int `yaml:"cycle_maxima" env:"CYCLE_MAXIMA"`
	PoolSize        int            `yaml:"pool_size" env:"POOL_SIZE" envDefault:"64"`
}

type Cache struct {
	DocumentCacheSize  int64 `yaml:"document_cache_size" env:"DOCUMENT_CACHE_SIZE" envDefault:"1000"`
	OperationCacheSize int64 `yaml:"operation_cache_size" env:"OPERATION_CACHE_SIZE" envDefault:"1000"`
}

type PersistedOperations struct {
	persisted.Config `yaml:",inline"`

	Enabled       bool   `yaml:"enabled" env:"ENABLED"`
	OnlyPersisted bool   `yaml:"only_persisted" env:"ONLY_PERSISTED"`
	AllowWrites   bool   `yaml:"allow_writes" env:"ALLOW_WRITES"`
	HashAlgorithm string `yaml:"hash_algorithm" env:"HASH_ALGORITHM" envDefault:"sha256"`
}

// Load reads .env files, the environment and then the YAML file at path,
// which may reference environment variables. An empty path falls back to
// $GRAPHCORE_CONFIG; no file at all is fine.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var operationKinds = []ast.Operation{ast.Query, ast.Mutation, ast.Subscription}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if c.Server.Addr == "" {
		add("server.addr must not be empty")
	}
	if c.Server.MaxBodyBytes <= 0 {
		add("server.max_body_bytes must be positive")
	}
	if c.Execution.Timeout < 0 {
		add("execution.timeout must not be negative")
	}
	for _, k := range c.Execution.OperationKinds() {
		if !slices.Contains(operationKinds, k) {
			add("execution.allowed_operations: unknown operation kind %q", k)
		}
	}
	if c.Execution.BatchParallelism < 0 {
		add("execution.batch_parallelism must not be negative")
	}
	if c.Validation.MaxErrors < 0 {
		add("validation.max_errors must not be negative")
	}
	if c.Cache.DocumentCacheSize < 0 || c.Cache.OperationCacheSize < 0 {
		add("cache sizes must not be negative")
	}
	if c.Complexity.MaxDepth < 0 || c.Complexity.MaxComplexity < 0 {
		add("complexity limits must not be negative")
	}

	po := c.PersistedOperations
	if po.Enabled {
		switch po.Storage {
		case "", persisted.KindMemory:
		case persisted.KindFS:
			if po.Path == "" {
				add("persisted_operations.path is required for the fs storage")
			}
		case persisted.KindRedis:
			if po.RedisURL == "" {
				add("persisted_operations.redis_url is required for the redis storage")
			}
		default:
			add("persisted_operations.storage: unknown storage %q", po.Storage)
		}
	}
	if po.OnlyPersisted && !po.Enabled {
		add("persisted_operations.only_persisted requires persisted_operations.enabled")
	}
	if _, err := pipeline.NewHashProvider(po.HashAlgorithm); err != nil {
		result = multierror.Append(result, fmt.Errorf("persisted_operations.hash_algorithm: %w", err))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		add("metrics.path must start with /")
	}

	return result.ErrorOrNil()
}

// ErrNoSchema is returned by commands that need a schema path.
var ErrNoSchema = errors.New("no schema path configured")
