package server

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/graphcore/internal/executor"
	"github.com/hanpama/graphcore/internal/persisted"
	"github.com/hanpama/graphcore/internal/pipeline"
	"github.com/hanpama/graphcore/internal/reqid"
	"github.com/hanpama/graphcore/internal/schema"
)

const testSDL = `
type Query { hello(name: String): String }
type Mutation { touch: Boolean }
type Subscription { ticks: Int }
`

func newTestHandler(t *testing.T, rt executor.Runtime, popts []pipeline.Option, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL("test", testSDL)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	return New(pipeline.New(executor.New(rt, sch), popts...), opts...)
}

func helloRuntime() *executor.MockRuntime {
	return executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": func(_ context.Context, _ any, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			if name == "" {
				name = "world"
			}
			return name, nil
		},
		"Mutation.touch":     executor.NewMockValueResolver(true),
		"Subscription.ticks": func(_ context.Context, source any, _ map[string]any) (any, error) { return source, nil },
	})
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func firstCode(t *testing.T, body map[string]any) any {
	t.Helper()
	errs, ok := body["errors"].([]any)
	require.True(t, ok, "no errors in %v", body)
	return errs[0].(map[string]any)["extensions"].(map[string]any)["code"]
}

func TestForwardedHeaders(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var captured metadata.MD
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = metadata.FromOutgoingContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, nil, WithMetadataHeaders("X-Test"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	req.Header.Set("X-Other", "nope")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured == nil || captured.Get("x-test")[0] != "abc" || len(captured.Get("x-other")) > 0 {
		t.Fatalf("metadata not propagated correctly: %v", captured)
	}
}

func TestForwardedHeadersDefaultEmpty(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var captured metadata.MD
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = metadata.FromOutgoingContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, nil)

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured != nil && len(captured.Get("x-test")) > 0 {
		t.Fatalf("header should not be forwarded by default: %v", captured)
	}
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil, WithCORS("*"))

	// simple request
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	// preflight
	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight missing CORS header")
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestCORSSpecificOrigin(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil, WithCORS("https://app.example.com"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", w.Header().Get("Vary"))

	req = httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil, WithMaxBodyBytes(10))

	w := post(t, h, `{"query":"1234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var capturedMD metadata.MD
	var capturedID string
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		capturedMD, _ = metadata.FromOutgoingContext(ctx)
		capturedID, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, nil)

	w := post(t, h, `{"query":"{ hello }"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if capturedID == "" {
		t.Fatalf("missing request id in context")
	}
	if got := capturedMD.Get("graphql-request-id"); len(got) == 0 || got[0] != capturedID {
		t.Fatalf("metadata mismatch: %v id %s", capturedMD, capturedID)
	}
	if w.Header().Get("X-Request-Id") != capturedID {
		t.Fatalf("response header mismatch: %q", w.Header().Get("X-Request-Id"))
	}

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ hello }"}`))
	req.Header.Set("X-Request-Id", "client-id")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if capturedID != "client-id" {
		t.Fatalf("client request id not honoured: %q", capturedID)
	}
}

func TestGetRunsQueriesOnly(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil)

	q := url.Values{"query": {`query($n: String) { hello(name: $n) }`}, "variables": {`{"n":"get"}`}}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/graphql?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"hello": "get"}, decode(t, w)["data"])

	q = url.Values{"query": {`mutation { touch }`}}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/graphql?"+q.Encode(), nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, pipeline.CodeOperationNotAllowed, firstCode(t, decode(t, w)))

	w = post(t, h, `{"query":"mutation { touch }"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"touch": true}, decode(t, w)["data"])
}

func TestStatusHints(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil)

	w := post(t, h, `{"query":"{ hello"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pipeline.CodeParseFailed, firstCode(t, decode(t, w)))

	w = post(t, h, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pipeline.CodeDocumentNotFound, firstCode(t, decode(t, w)))

	w = post(t, h, `{"query":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pipeline.CodeInvalidRequest, firstCode(t, decode(t, w)))

	w = post(t, h, `{"query":"{ hello }","variables":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("PUT", "/graphql", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestBatchedRequests(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil)

	w := post(t, h, `[{"query":"{ hello }"},{"query":"{ hello(name: \"b\") }"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"data":{"hello":"world"}},{"data":{"hello":"b"}}]`, w.Body.String())

	w = post(t, h, `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVariableSets(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil)

	w := post(t, h, `{"query":"query($n: String) { hello(name: $n) }","variables":[{"n":"a"},{"n":"b"}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"data":{"hello":"a"}},{"data":{"hello":"b"}}]`, w.Body.String())
}

func TestPersistedQueryEnvelope(t *testing.T) {
	storage, err := persisted.NewMemoryStorage(100)
	require.NoError(t, err)
	defer storage.Close()
	h := newTestHandler(t, helloRuntime(), []pipeline.Option{pipeline.WithStorage(storage), pipeline.WithPersistWrites()})

	const query = "{ hello }"
	hash := h.pipeline.Hasher().Hash([]byte(query))
	w := post(t, h, `{"query":"`+query+`","extensions":{"persistedQuery":{"version":1,"sha256Hash":"`+hash+`"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]any{"sha256Hash": hash, "persisted": true}, body["extensions"].(map[string]any)["persistedQuery"])

	w = post(t, h, `{"extensions":{"persistedQuery":{"version":1,"sha256Hash":"`+hash+`"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"hello": "world"}, decode(t, w)["data"])

	w = post(t, h, `{"documentId":"unknown"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, pipeline.CodePersistedOperationNotFound, firstCode(t, decode(t, w)))
}

func TestSubscriptionStream(t *testing.T) {
	rt := helloRuntime()
	source := make(chan any, 2)
	source <- 1
	source <- 2
	close(source)
	rt.SetStream("ticks", source)
	h := newTestHandler(t, rt, nil)

	w := post(t, h, `{"query":"subscription { ticks }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	var events, data []string
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			events = append(events, strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, []string{"next", "next", "complete"}, events)
	require.Len(t, data, 2)
	assert.JSONEq(t, `{"data":{"ticks":1}}`, data[0])
	assert.JSONEq(t, `{"data":{"ticks":2}}`, data[1])
}

func TestGraphiQL(t *testing.T) {
	h := newTestHandler(t, helloRuntime(), nil)
	req := httptest.NewRequest("GET", "/graphql", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "GraphiQL")

	off := newTestHandler(t, helloRuntime(), nil, WithGraphiQL(false))
	w = httptest.NewRecorder()
	off.ServeHTTP(w, req)
	assert.NotContains(t, w.Body.String(), "<html")
}
