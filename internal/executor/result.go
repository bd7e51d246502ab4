package executor

import "github.com/vektah/gqlparser/v2/gqlerror"

// Result is the outcome of executing one operation.
type Result struct {
	Data   map[string]any `json:"data"`
	Errors gqlerror.List  `json:"errors,omitempty"`
}
