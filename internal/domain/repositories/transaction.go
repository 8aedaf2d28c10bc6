package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// CommitHook runs after the outermost transaction commits. Used to defer
// index/pipeline dispatch until the triggering state is durable.
type CommitHook func(ctx context.Context)

// TransactionManager handles database transactions
type TransactionManager interface {
	// ExecTx executes a function within a transaction. Nested calls join
	// the transaction already present in the context; only the outermost
	// call commits and fires after-commit hooks.
	ExecTx(ctx context.Context, fn TxFn) error
}

// hooksContextKey is the type for after-commit hook context keys
type hooksContextKey string

const hooksKey hooksContextKey = "commit_hooks"

// hookList is shared by reference so nested transaction scopes append to
// the outermost list.
type hookList struct {
	hooks []CommitHook
}

// SetHooks installs a hook collector in the context. Done by the outermost
// ExecTx only.
func SetHooks(ctx context.Context) (context.Context, *hookList) {
	hl := &hookList{}
	return context.WithValue(ctx, hooksKey, hl), hl
}

// HasHooks reports whether a hook collector is already present, i.e. we
// are inside a transaction scope.
func HasHooks(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey).(*hookList)
	return ok
}

// AfterCommit registers fn to run once the outermost transaction commits.
// Outside any transaction scope fn runs immediately.
func AfterCommit(ctx context.Context, fn CommitHook) {
	hl, ok := ctx.Value(hooksKey).(*hookList)
	if !ok {
		fn(ctx)
		return
	}
	hl.hooks = append(hl.hooks, fn)
}

// Fire runs the collected hooks in registration order.
func (hl *hookList) Fire(ctx context.Context) {
	for _, fn := range hl.hooks {
		fn(ctx)
	}
}
