// Package server exposes a pipeline over HTTP: GET and POST, batched JSON
// arrays, persisted query envelopes and server-sent event streams for
// subscriptions.
package server

import (
	"context"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/graphcore/internal/eventbus"
	"github.com/hanpama/graphcore/internal/events"
	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/logging"
	"github.com/hanpama/graphcore/internal/pipeline"
	"github.com/hanpama/graphcore/internal/reqid"
)

const (
	requestIDHeader = "X-Request-Id"
	// requestIDMetadata carries the request id to downstream gRPC services.
	requestIDMetadata = "graphql-request-id"

	statusClientClosedRequest = 499
	errBodyTooLargeMessage    = "body too large"
)

// Handler is an http.Handler that serves a GraphQL endpoint.
type Handler struct {
	pipeline *pipeline.Pipeline
	opt      Options
}

type Options struct {
	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward into gRPC metadata.
	// Header names are case-insensitive. Default is none.
	MetadataHeaders []string

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool

	Logger *zap.Logger
	Bus    *eventbus.Bus
}

type Option func(*Options)

func WithPretty() Option              { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }
func WithLogger(l *zap.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithBus(b *eventbus.Bus) Option  { return func(o *Options) { o.Bus = b } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler that runs every request through p.
func New(p *pipeline.Pipeline, opts ...Option) *Handler {
	op := Options{GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = zap.NewNop()
	}
	return &Handler{pipeline: p, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, rid := reqid.WithID(r.Context(), r.Header.Get(requestIDHeader))
	w.Header().Set(requestIDHeader, rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Emit(h.opt.Bus, ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Emit(h.opt.Bus, ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(requestError("method not allowed")), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.RawQuery == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.forwardedMetadata(r, rid))

	reqs, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch {
		results := make([]*pipeline.Result, len(reqs))
		for i, wr := range reqs {
			results[i] = h.execute(ctx, r.Method, wr)
			if results[i].Stream != nil {
				results[i] = errorResponse(requestError("subscriptions cannot be batched"))
			}
		}
		writeJSON(w, status, results, h.opt.Pretty)
		return
	}

	res := h.execute(ctx, r.Method, reqs[0])
	if res.Stream != nil {
		status = h.writeStream(ctx, w, res.Stream)
		return
	}
	if code := res.StatusCode(); code != 0 {
		status = code
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// forwardedMetadata maps the configured headers and the request id into
// gRPC metadata.
func (h *Handler) forwardedMetadata(r *http.Request, rid string) metadata.MD {
	md := metadata.MD{}
	for _, hdr := range h.opt.MetadataHeaders {
		if v := r.Header.Values(hdr); len(v) > 0 {
			md[strings.ToLower(hdr)] = v
		}
	}
	md[requestIDMetadata] = []string{rid}
	return md
}

func (h *Handler) execute(ctx context.Context, method string, wr wireRequest) *pipeline.Result {
	req, err := h.toRequest(method, wr)
	if err != nil {
		res := errorResponse(err)
		res.SetStatusCode(http.StatusBadRequest)
		return res
	}
	res, cerr := h.pipeline.Execute(ctx, req)
	if cerr != nil {
		rid, _ := reqid.FromContext(ctx)
		h.opt.Logger.Debug("request canceled", logging.WithRequestID(rid), zap.Error(cerr))
		res.SetStatusCode(statusClientClosedRequest)
	}
	return res
}

// toRequest translates the wire format. GET requests may only run queries.
func (h *Handler) toRequest(method string, wr wireRequest) (*pipeline.Request, *gqlerror.Error) {
	req := &pipeline.Request{
		Query:         wr.Query,
		OperationName: wr.OperationName,
		Extensions:    wr.Extensions,
		DocumentID:    wr.DocumentID,
		Features:      h.pipeline.NewFeatures(),
	}
	if req.DocumentID == "" {
		req.DocumentID = wr.ID
	}

	switch v := wr.Variables.(type) {
	case nil:
	case map[string]any:
		req.Variables = v
	case []any:
		req.VariableSets = make([]map[string]any, len(v))
		for i, set := range v {
			m, ok := set.(map[string]any)
			if !ok {
				return nil, requestError("variables must be an object or an array of objects")
			}
			req.VariableSets[i] = m
		}
	default:
		return nil, requestError("variables must be an object or an array of objects")
	}

	if pq, ok := wr.Extensions["persistedQuery"].(map[string]any); ok {
		hashKey := h.pipeline.Hasher().Name() + "Hash"
		if hash, ok := pq[hashKey].(string); ok {
			req.DocumentHash = hash
			req.Persist = req.Query != ""
		}
	}

	if method == http.MethodGet {
		features.Set(req.Features, features.AllowedOperations, []ast.Operation{ast.Query})
	}
	return req, nil
}

// writeStream sends each result as a server-sent event and finishes with a
// complete event.
func (h *Handler) writeStream(ctx context.Context, w http.ResponseWriter, stream <-chan *pipeline.Result) int {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusNotAcceptable, errorResponse(requestError("streaming is not supported")), h.opt.Pretty)
		return http.StatusNotAcceptable
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return http.StatusOK
		case res, ok := <-stream:
			if !ok {
				_, _ = io.WriteString(w, "event: complete\ndata:\n\n")
				flusher.Flush()
				return http.StatusOK
			}
			data, err := json.Marshal(res)
			if err != nil {
				h.opt.Logger.Warn("encoding stream result", zap.Error(err))
				continue
			}
			_, _ = io.WriteString(w, "event: next\ndata: ")
			_, _ = w.Write(data)
			_, _ = io.WriteString(w, "\n\n")
			flusher.Flush()
		}
	}
}

// ------------------ Request parsing ------------------

type wireRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     any            `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
	ID            string         `json:"id,omitempty"`
	DocumentID    string         `json:"documentId,omitempty"`
}

func requestError(message string) *gqlerror.Error {
	return &gqlerror.Error{Message: message, Extensions: map[string]any{"code": pipeline.CodeInvalidRequest}}
}

func errorResponse(err *gqlerror.Error) *pipeline.Result {
	return &pipeline.Result{Errors: gqlerror.List{err}}
}

func parseRequest(r *http.Request, maxBody int64) ([]wireRequest, bool, *gqlerror.Error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		wr := wireRequest{
			Query:         q.Get("query"),
			OperationName: q.Get("operationName"),
			ID:            q.Get("id"),
			DocumentID:    q.Get("documentId"),
		}
		if v := q.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &wr.Variables); err != nil {
				return nil, false, requestError("invalid 'variables' JSON")
			}
		}
		if v := q.Get("extensions"); v != "" {
			if err := json.Unmarshal([]byte(v), &wr.Extensions); err != nil {
				return nil, false, requestError("invalid 'extensions' JSON")
			}
		}
		return []wireRequest{wr}, false, nil
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return nil, false, requestError("unsupported Content-Type")
	}
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, requestError("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, false, requestError(errBodyTooLargeMessage)
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []wireRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, false, requestError("invalid JSON")
		}
		if len(arr) == 0 {
			return nil, false, requestError("empty batch")
		}
		return arr, true, nil
	}
	var wr wireRequest
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, false, requestError("invalid JSON")
	}
	return []wireRequest{wr}, false, nil
}

// ------------------ Response formatting ------------------

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := slices.Contains(opts.AllowedOrigins, "*")
	if !wildcard && !slices.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
