package introspection

import (
	"sync"

	"github.com/hanpama/graphcore/internal/schema"
)

// metaTypes are the __Schema family of types, taken from the parser prelude.
var metaTypes = sync.OnceValue(func() map[string]*schema.Type {
	s, err := schema.BuildFromSDL("introspection", "type Query { _: Boolean }")
	if err != nil {
		panic(err)
	}
	out := map[string]*schema.Type{}
	for name, t := range s.Types {
		if schema.IsIntrospectionName(name) {
			out[name] = t
		}
	}
	return out
})

// WithTypes returns s extended with the introspection types. Schemas built
// from SDL already carry them and are returned unchanged.
func WithTypes(s *schema.Schema) *schema.Schema {
	if s.ResolveNamedType("__Schema") != nil {
		return s
	}
	extended := *s
	extended.Types = make(map[string]*schema.Type, len(s.Types)+len(metaTypes()))
	for name, t := range s.Types {
		extended.Types[name] = t
	}
	for name, t := range metaTypes() {
		extended.Types[name] = t
	}
	return &extended
}
