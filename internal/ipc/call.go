package ipc

import (
	"context"
	"fmt"

	"github.com/efprojects/kitten-ipc/internal/dispatch"
)

// Caller is satisfied by Parent, Child and Engine.
type Caller interface {
	Call(ctx context.Context, method string, params ...any) ([]any, error)
}

// CallValue calls method and converts its single result to T.
func CallValue[T any](ctx context.Context, c Caller, method string, params ...any) (T, error) {
	var zero T
	results, err := c.Call(ctx, method, params...)
	if err != nil {
		return zero, err
	}
	if len(results) != 1 {
		return zero, fmt.Errorf("%s: expected 1 result, got %d", method, len(results))
	}
	v, err := dispatch.Arg[T](results[0])
	if err != nil {
		return zero, fmt.Errorf("%s: %w", method, err)
	}
	return v, nil
}
