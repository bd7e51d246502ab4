package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Extension codes of errors produced by the pipeline itself.
const (
	CodeParseFailed                = "GRAPHQL_PARSE_FAILED"
	CodeDocumentNotFound           = "DOCUMENT_NOT_FOUND"
	CodePersistedOperationNotFound = "PERSISTED_OPERATION_NOT_FOUND"
	CodePersistedOperationRequired = "PERSISTED_OPERATION_REQUIRED"
	CodeOperationNotAllowed        = "OPERATION_NOT_ALLOWED"
	CodeInvalidRequest             = "INVALID_REQUEST"
	CodeExecutionTimeout           = "EXECUTION_TIMEOUT"
	CodeRequestCanceled            = "REQUEST_CANCELED"
	CodeUnexpectedError            = "UNEXPECTED_ERROR"
	CodeSubscriptionFailed         = "SUBSCRIPTION_FAILED"
)

const (
	unexpectedErrorMessage = "Unexpected Execution Error"
	statusCodeKey          = "statusCode"
)

// GraphQLError is returned by stages and collaborators that fail with
// client-facing errors. The error boundary turns it into a result.
type GraphQLError struct {
	Errors     gqlerror.List
	StatusCode int
}

func (e *GraphQLError) Error() string { return e.Errors.Error() }

// NewGraphQLError builds a single-error GraphQLError with an extension code.
func NewGraphQLError(code string, status int, format string, args ...any) *GraphQLError {
	return &GraphQLError{
		Errors:     gqlerror.List{codeError(code, fmt.Sprintf(format, args...))},
		StatusCode: status,
	}
}

// PanicError wraps a value recovered from a panicking stage.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ErrorHandler is applied to every error leaving the pipeline.
type ErrorHandler interface {
	// Handle may rewrite a client-facing error.
	Handle(err *gqlerror.Error) *gqlerror.Error
	// Unexpected converts an internal failure into a client-facing error.
	Unexpected(err error) *gqlerror.Error
}

// DefaultErrorHandler hides internal failures unless IncludeExceptionDetails
// is set.
type DefaultErrorHandler struct {
	IncludeExceptionDetails bool
}

func (h DefaultErrorHandler) Handle(err *gqlerror.Error) *gqlerror.Error {
	var p *PanicError
	if err == nil || h.IncludeExceptionDetails || !errors.As(err.Err, &p) {
		return err
	}
	out := *err
	out.Message = unexpectedErrorMessage
	out.Extensions = map[string]any{"code": CodeUnexpectedError}
	return &out
}

func (h DefaultErrorHandler) Unexpected(err error) *gqlerror.Error {
	out := codeError(CodeUnexpectedError, unexpectedErrorMessage)
	out.Err = err
	if h.IncludeExceptionDetails {
		out.Extensions["message"] = err.Error()
		var p *PanicError
		if errors.As(err, &p) {
			out.Extensions["stackTrace"] = string(p.Stack)
		}
	}
	return out
}

func codeError(code, message string) *gqlerror.Error {
	return &gqlerror.Error{Message: message, Extensions: map[string]any{"code": code}}
}

func errorResult(status int, errs ...*gqlerror.Error) *Result {
	res := &Result{Errors: append(gqlerror.List(nil), errs...)}
	if status != 0 {
		res.SetStatusCode(status)
	}
	return res
}

func persistedNotFound(id string) *Result {
	return errorResult(http.StatusBadRequest, codeError(CodePersistedOperationNotFound,
		fmt.Sprintf("The persisted operation %q could not be found.", id)))
}
