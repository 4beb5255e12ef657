package common

import "context"

// CloseFunc releases a resource created by a factory. Implementations honor
// the context deadline during graceful shutdown.
type CloseFunc func(ctx context.Context) error

// CloseAll runs close functions in reverse creation order, so dependents go
// down before their dependencies.
func CloseAll(ctx context.Context, closers []CloseFunc) error {
	var ret error

	for i := len(closers) - 1; i >= 0; i-- {
		err := closers[i](ctx)
		if err != nil && ret == nil {
			ret = err
		}
	}

	return ret
}
