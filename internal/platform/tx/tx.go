package tx

import "context"

// Manager wraps transactional boundaries for multi-adapter operations.
// Adapters that share a Manager observe the same transaction through ctx.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

type NoopManager struct{}

func (NoopManager) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// ManagerFunc adapts a plain function into a Manager.
type ManagerFunc func(ctx context.Context, fn func(context.Context) error) error

func (f ManagerFunc) Within(ctx context.Context, fn func(context.Context) error) error {
	return f(ctx, fn)
}
