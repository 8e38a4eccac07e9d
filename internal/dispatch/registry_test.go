package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efprojects/kitten-ipc/internal/protocol"
)

type calc struct {
	divCalls int
}

func (c *calc) Methods() Methods {
	return Methods{
		"Div": Func2(func(_ context.Context, a, b int) (int, error) {
			c.divCalls++
			if b == 0 {
				return 0, errors.New("division by zero")
			}
			return a / b, nil
		}),
		"Xor": Func2(func(_ context.Context, a, b []byte) ([]byte, error) {
			if len(a) != len(b) {
				return nil, errors.New("input data length mismatch")
			}
			out := make([]byte, len(a))
			for i := range a {
				out[i] = a[i] ^ b[i]
			}
			return out, nil
		}),
		"Panic": Func0(func(context.Context) (any, error) {
			panic("kaboom")
		}),
	}
}

func newTestRegistry(t *testing.T) (*Registry, *calc) {
	t.Helper()
	c := &calc{}
	r, err := NewRegistry(map[string]Capability{"Calc": c})
	require.NoError(t, err)
	return r, c
}

func TestDispatchSuccess(t *testing.T) {
	r, _ := newTestRegistry(t)

	resp := r.Dispatch(context.Background(), protocol.NewCall(4, "Calc.Div", []any{float64(10), float64(2)}))
	require.Equal(t, protocol.TypeResponse, resp.Type)
	require.Equal(t, uint64(4), resp.ID)
	require.False(t, resp.Failed())
	require.Equal(t, []any{5}, resp.Result)
}

func TestDispatchMethodError(t *testing.T) {
	r, _ := newTestRegistry(t)

	resp := r.Dispatch(context.Background(), protocol.NewCall(1, "Calc.Div", []any{float64(10), float64(0)}))
	require.True(t, resp.Failed())
	require.Equal(t, "division by zero", resp.Error)
	require.Nil(t, resp.Result)
}

func TestDispatchBase64Params(t *testing.T) {
	r, _ := newTestRegistry(t)

	resp := r.Dispatch(context.Background(), protocol.NewCall(2, "Calc.Xor", []any{"qqo=", "8PA="}))
	require.False(t, resp.Failed(), resp.Error)
	require.Equal(t, []any{[]byte{0x5a, 0x5a}}, resp.Result)
}

func TestDispatchLookupFailures(t *testing.T) {
	r, c := newTestRegistry(t)

	tests := []struct {
		name    string
		method  string
		params  []any
		wantErr string
	}{
		{name: "no delimiter", method: "CalcDiv", params: []any{1, 2}, wantErr: "call malformed: CalcDiv"},
		{name: "too many segments", method: "Calc.Div.Extra", params: []any{1, 2}, wantErr: "call malformed: Calc.Div.Extra"},
		{name: "empty capability", method: ".Div", params: []any{1, 2}, wantErr: "call malformed: .Div"},
		{name: "empty method", method: "Calc.", params: []any{1, 2}, wantErr: "call malformed: Calc."},
		{name: "unknown capability", method: "Math.Div", params: []any{1, 2}, wantErr: "capability not found: Math"},
		{name: "unknown method", method: "Calc.Mul", params: []any{1, 2}, wantErr: "method not found: Calc.Mul"},
		{name: "too few params", method: "Calc.Div", params: []any{1}, wantErr: "argument count mismatch: expected 2, got 1"},
		{name: "too many params", method: "Calc.Div", params: []any{1, 2, 3}, wantErr: "argument count mismatch: expected 2, got 3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := r.Dispatch(context.Background(), protocol.NewCall(9, tc.method, tc.params))
			require.Equal(t, uint64(9), resp.ID)
			require.Equal(t, tc.wantErr, resp.Error)
		})
	}

	require.Equal(t, 0, c.divCalls)
}

func TestDispatchParamConversionFailure(t *testing.T) {
	r, c := newTestRegistry(t)

	resp := r.Dispatch(context.Background(), protocol.NewCall(3, "Calc.Div", []any{"ten", float64(2)}))
	require.True(t, resp.Failed())
	require.Contains(t, resp.Error, "param 0")
	require.Equal(t, 0, c.divCalls)

	resp = r.Dispatch(context.Background(), protocol.NewCall(3, "Calc.Div", []any{float64(10), 2.5}))
	require.True(t, resp.Failed())
	require.Contains(t, resp.Error, "param 1")
}

func TestDispatchRecoversPanic(t *testing.T) {
	r, _ := newTestRegistry(t)

	resp := r.Dispatch(context.Background(), protocol.NewCall(5, "Calc.Panic", nil))
	require.True(t, resp.Failed())
	require.Equal(t, "handle call panicked: kaboom", resp.Error)
}

func TestNewRegistryValidation(t *testing.T) {
	noop := Func0(func(context.Context) (int, error) { return 0, nil })

	tests := []struct {
		name    string
		caps    map[string]Capability
		wantErr string
	}{
		{name: "empty name", caps: map[string]Capability{"": Methods{}}, wantErr: "must not be empty"},
		{name: "dotted name", caps: map[string]Capability{"a.b": Methods{}}, wantErr: "must not contain"},
		{name: "nil capability", caps: map[string]Capability{"A": nil}, wantErr: "is nil"},
		{name: "dotted method", caps: map[string]Capability{"A": Methods{"x.y": noop}}, wantErr: "invalid method name"},
		{name: "negative arity", caps: map[string]Capability{"A": Methods{"x": {Arity: -1, Invoke: noop.Invoke}}}, wantErr: "negative arity"},
		{name: "nil invoker", caps: map[string]Capability{"A": Methods{"x": {Arity: 0}}}, wantErr: "no invoker"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.caps)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRegistryNames(t *testing.T) {
	noop := Func0(func(context.Context) (int, error) { return 0, nil })
	r, err := NewRegistry(map[string]Capability{
		"Host": Methods{"Now": noop},
		"Calc": Methods{"Now": noop},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Calc", "Host"}, r.Names())
}

func TestArg(t *testing.T) {
	n, err := Arg[int](float64(42))
	require.NoError(t, err)
	require.Equal(t, 42, n)

	s, err := Arg[string]("hello")
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	b, err := Arg[[]byte]("/wA=")
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0x00}, b)

	type point struct {
		X int `json:"x"`
	}
	p, err := Arg[point](map[string]any{"x": float64(3)})
	require.NoError(t, err)
	require.Equal(t, point{X: 3}, p)

	_, err = Arg[int](1.5)
	require.Error(t, err)
}
