package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Arg converts one decoded JSON parameter into T. Values that already have
// type T pass through; anything else is re-decoded through JSON, which turns
// integral numbers into ints and base64 strings into []byte.
func Arg[T any](v any) (T, error) {
	var zero T
	if typed, ok := v.(T); ok {
		return typed, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("cannot convert %T to %T: %w", v, zero, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("cannot convert %T to %T: %w", v, zero, err)
	}
	return out, nil
}

func param[T any](params []any, i int) (T, error) {
	v, err := Arg[T](params[i])
	if err != nil {
		return v, fmt.Errorf("param %d: %w", i, err)
	}
	return v, nil
}

// Func0 exposes a method without parameters.
func Func0[R any](fn func(context.Context) (R, error)) Method {
	return Method{
		Arity: 0,
		Invoke: func(ctx context.Context, _ []any) (any, error) {
			return fn(ctx)
		},
	}
}

// Func1 exposes a one-parameter method.
func Func1[A, R any](fn func(context.Context, A) (R, error)) Method {
	return Method{
		Arity: 1,
		Invoke: func(ctx context.Context, params []any) (any, error) {
			a, err := param[A](params, 0)
			if err != nil {
				return nil, err
			}
			return fn(ctx, a)
		},
	}
}

// Func2 exposes a two-parameter method.
func Func2[A, B, R any](fn func(context.Context, A, B) (R, error)) Method {
	return Method{
		Arity: 2,
		Invoke: func(ctx context.Context, params []any) (any, error) {
			a, err := param[A](params, 0)
			if err != nil {
				return nil, err
			}
			b, err := param[B](params, 1)
			if err != nil {
				return nil, err
			}
			return fn(ctx, a, b)
		},
	}
}

// Func3 exposes a three-parameter method.
func Func3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error)) Method {
	return Method{
		Arity: 3,
		Invoke: func(ctx context.Context, params []any) (any, error) {
			a, err := param[A](params, 0)
			if err != nil {
				return nil, err
			}
			b, err := param[B](params, 1)
			if err != nil {
				return nil, err
			}
			c, err := param[C](params, 2)
			if err != nil {
				return nil, err
			}
			return fn(ctx, a, b, c)
		},
	}
}
