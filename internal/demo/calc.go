// Package demo holds the capabilities exchanged by `kittenipc run` and
// `kittenipc child`, plus typed clients for calling them on the peer.
package demo

import (
	"context"
	"errors"

	"github.com/efprojects/kitten-ipc/internal/dispatch"
	"github.com/efprojects/kitten-ipc/internal/ipc"
)

// Capability names as seen on the wire.
const (
	CalcName = "Calc"
	HostName = "Host"
)

var (
	ErrZeroDivision   = errors.New("zero division")
	ErrEmptyInput     = errors.New("empty input data")
	ErrLengthMismatch = errors.New("input data length mismatch")
)

// Calc is exposed by the child.
type Calc struct{}

func (c Calc) Methods() ipc.Methods {
	return ipc.Methods{
		"Div":     dispatch.Func2(c.Div),
		"XorData": dispatch.Func2(c.XorData),
	}
}

// Div returns a / b using integer division.
func (Calc) Div(_ context.Context, a, b int) (int, error) {
	if b == 0 {
		return 0, ErrZeroDivision
	}
	return a / b, nil
}

// XorData xors two equal-length byte strings.
func (Calc) XorData(_ context.Context, a, b []byte) ([]byte, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmptyInput
	}
	if len(a) != len(b) {
		return nil, ErrLengthMismatch
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// CalcClient calls a peer's Calc capability.
type CalcClient struct {
	Caller ipc.Caller
}

func (c CalcClient) Div(ctx context.Context, a, b int) (int, error) {
	return ipc.CallValue[int](ctx, c.Caller, CalcName+".Div", a, b)
}

func (c CalcClient) XorData(ctx context.Context, a, b []byte) ([]byte, error) {
	return ipc.CallValue[[]byte](ctx, c.Caller, CalcName+".XorData", a, b)
}
