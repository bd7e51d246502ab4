package pipeline

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/graphcore/internal/features"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/validation"
	"github.com/hanpama/graphcore/internal/variables"
)

// Request is one GraphQL request as decoded by a transport.
//
// Exactly one of Variables and VariableSets may be set. VariableSets runs
// the operation once per set and yields a batch result.
type Request struct {
	Query string
	// DocumentID is a client declared document id, e.g. a persisted
	// operation id.
	DocumentID string
	// DocumentHash is a client supplied content hash, e.g. the
	// persistedQuery.sha256Hash extension.
	DocumentHash  string
	OperationName string
	Variables     map[string]any
	VariableSets  []map[string]any
	Extensions    map[string]any
	// Document skips parsing when already attached.
	Document *ast.QueryDocument
	// Features are request scoped switches layered over the pipeline's.
	Features *features.Store
	// Persist asks the pipeline to store Query under DocumentHash.
	Persist bool
}

// RequestContext is the mutable state of one pipeline invocation. Stages
// treat populated fields as already resolved.
type RequestContext struct {
	Request     *Request
	RequestID   string
	Schema      *schema.Schema
	Features    *features.Store
	ContextData map[string]any

	Document            *ast.QueryDocument
	DocumentID          string
	DocumentHash        string
	IsCachedDocument    bool
	IsPersistedDocument bool
	ValidationResult    *validation.Result

	Operation         *operation.Prepared
	OperationID       string
	IsCachedOperation bool

	Variables []variables.Values
	// VariableErrors holds per-set coercion failures of a batch.
	VariableErrors []error

	Result    *Result
	Exception error

	// caller is the context handed to Execute, before any timeout.
	caller context.Context
}

// IsBatch reports whether the request carries several variable sets.
func (rc *RequestContext) IsBatch() bool { return rc.Request.VariableSets != nil }

// Result is the terminal outcome of a request.
//
// Batch holds one result per variable set; Stream yields one result per
// subscription event. Both leave Data and Errors empty.
type Result struct {
	Data       map[string]any
	Errors     gqlerror.List
	Extensions map[string]any
	// ContextData carries transport hints such as the status code.
	ContextData map[string]any
	// Executed is set when the operation ran, so data is reported even
	// when it is null.
	Executed bool

	Batch  []*Result
	Stream <-chan *Result
}

// SetStatusCode attaches a status hint for transports.
func (r *Result) SetStatusCode(code int) {
	if r.ContextData == nil {
		r.ContextData = map[string]any{}
	}
	r.ContextData[statusCodeKey] = code
}

// StatusCode returns the status hint or 0.
func (r *Result) StatusCode() int {
	if r == nil {
		return 0
	}
	code, _ := r.ContextData[statusCodeKey].(int)
	return code
}

// SetExtension adds a top level response extension.
func (r *Result) SetExtension(key string, value any) {
	if r.Extensions == nil {
		r.Extensions = map[string]any{}
	}
	r.Extensions[key] = value
}

func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Batch != nil {
		return json.Marshal(r.Batch)
	}
	if r.Executed {
		return json.Marshal(struct {
			Data       map[string]any `json:"data"`
			Errors     gqlerror.List  `json:"errors,omitempty"`
			Extensions map[string]any `json:"extensions,omitempty"`
		}{r.Data, r.Errors, r.Extensions})
	}
	return json.Marshal(struct {
		Errors     gqlerror.List  `json:"errors,omitempty"`
		Extensions map[string]any `json:"extensions,omitempty"`
	}{r.Errors, r.Extensions})
}
