package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/schema"
)

const testSDL = `
type Query {
  hello(name: String): String
  slow: String
  boom: String
  pet: Pet
}

type Pet {
  name: String
}

type Mutation {
  rename(name: String!): String
}

type Subscription {
  ticks: Int
}
`

// harness is a pipeline over a mock runtime that counts stage invocations.
type harness struct {
	pipeline *Pipeline
	runtime  *executor.MockRuntime
	bus      *eventbus.Bus

	mu    sync.Mutex
	calls map[string]int
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	s, err := schema.BuildFromSDL("test", testSDL)
	require.NoError(t, err)

	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": func(_ context.Context, _ any, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			if name == "" {
				name = "world"
			}
			return "hello " + name, nil
		},
		"Query.pet": executor.NewMockValueResolver(map[string]any{"name": "Rex"}),
		"Pet.name": func(_ context.Context, source any, _ map[string]any) (any, error) {
			return source.(map[string]any)["name"], nil
		},
		"Mutation.rename": func(_ context.Context, _ any, args map[string]any) (any, error) {
			if args["name"] == "fail" {
				return nil, errors.New("rename failed")
			}
			return args["name"], nil
		},
		"Subscription.ticks": func(_ context.Context, source any, _ map[string]any) (any, error) {
			return source, nil
		},
	})

	h := &harness{runtime: rt, bus: eventbus.New(), calls: map[string]int{}}
	base := []Option{WithBus(h.bus), WithInterceptor(h.count)}
	h.pipeline = New(executor.New(rt, s), append(base, opts...)...)
	return h
}

func (h *harness) count(stage string, next Handler) Handler {
	return func(ctx context.Context, rc *RequestContext) error {
		h.mu.Lock()
		h.calls[stage]++
		h.mu.Unlock()
		return next(ctx, rc)
	}
}

func (h *harness) invoked(stage string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[stage]
}

func (h *harness) run(t *testing.T, req *Request) *Result {
	t.Helper()
	res, err := h.pipeline.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

// countEvents counts the events of type T published on the harness bus.
func countEvents[T any](h *harness) *atomic.Int64 {
	n := new(atomic.Int64)
	eventbus.On(h.bus, func(context.Context, T) { n.Add(1) })
	return n
}

func code(err *gqlerror.Error) any { return err.Extensions["code"] }

func mustParse(t *testing.T, src string) *ast.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	return doc
}
