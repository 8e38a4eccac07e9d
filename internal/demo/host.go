package demo

import (
	"context"
	"log/slog"
	"time"

	"github.com/efprojects/kitten-ipc/internal/dispatch"
	"github.com/efprojects/kitten-ipc/internal/ipc"
)

// Host is exposed by the parent.
type Host struct {
	Logger *slog.Logger
	Clock  func() time.Time
}

func (h Host) Methods() ipc.Methods {
	return ipc.Methods{
		"Echo": dispatch.Func1(h.Echo),
		"Now":  dispatch.Func0(h.Now),
	}
}

// Echo returns msg unchanged and logs it.
func (h Host) Echo(_ context.Context, msg string) (string, error) {
	if h.Logger != nil {
		h.Logger.Info("child says", "message", msg)
	}
	return msg, nil
}

// Now returns the parent's wall clock in RFC 3339 form.
func (h Host) Now(context.Context) (string, error) {
	clock := h.Clock
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Format(time.RFC3339Nano), nil
}

// HostClient calls a peer's Host capability.
type HostClient struct {
	Caller ipc.Caller
}

func (c HostClient) Echo(ctx context.Context, msg string) (string, error) {
	return ipc.CallValue[string](ctx, c.Caller, HostName+".Echo", msg)
}

func (c HostClient) Now(ctx context.Context) (time.Time, error) {
	raw, err := ipc.CallValue[string](ctx, c.Caller, HostName+".Now")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}
