package events

import (
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// RequestStart is emitted when the pipeline picks up a request.
type RequestStart struct {
	RequestID     string
	DocumentID    string
	OperationName string
}

// RequestFinish is emitted after the pipeline produced a result.
type RequestFinish struct {
	RequestID     string
	DocumentID    string
	OperationName string
	OperationKind string
	ErrorCount    int
	StatusCode    int
	Duration      time.Duration
}

// RequestError is emitted when a stage failed with an error that was not a
// GraphQL error.
type RequestError struct {
	RequestID string
	Err       error
}

// ParseStart is emitted before a document is parsed.
type ParseStart struct {
	DocumentHash string
}

// ParseFinish is emitted after a parse attempt.
type ParseFinish struct {
	DocumentHash string
	Err          error
	Duration     time.Duration
}

// SyntaxError is emitted when a document could not be parsed.
type SyntaxError struct {
	DocumentHash string
	Err          *gqlerror.Error
}

// ValidateStart is emitted before a document is validated.
type ValidateStart struct {
	DocumentID string
}

// ValidateFinish is emitted after validation.
type ValidateFinish struct {
	DocumentID string
	ErrorCount int
	Duration   time.Duration
}

// ValidationErrors is emitted when validation rejected a document.
type ValidationErrors struct {
	DocumentID string
	Errors     gqlerror.List
}

// ExecuteStart is emitted before an operation is dispatched.
type ExecuteStart struct {
	OperationID   string
	OperationName string
	OperationKind string
	Batch         int
}

// ExecuteFinish is emitted when dispatch returned.
type ExecuteFinish struct {
	OperationID   string
	OperationName string
	OperationKind string
	ErrorCount    int
	Duration      time.Duration
}
