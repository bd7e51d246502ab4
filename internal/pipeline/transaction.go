package pipeline

import "context"

// TransactionScope surrounds the execution of one mutation. Complete marks
// it successful; Close releases it and commits only a completed scope.
type TransactionScope interface {
	Complete()
	Close() error
}

// TransactionScopeHandler opens a scope per mutation execution.
type TransactionScopeHandler interface {
	Begin(ctx context.Context, rc *RequestContext) (TransactionScope, error)
}

type noopTransactions struct{}

func (noopTransactions) Begin(context.Context, *RequestContext) (TransactionScope, error) {
	return noopScope{}, nil
}

type noopScope struct{}

func (noopScope) Complete()    {}
func (noopScope) Close() error { return nil }
