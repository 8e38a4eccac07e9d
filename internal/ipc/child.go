package ipc

import (
	"context"
	"fmt"
	"time"

	"github.com/efprojects/kitten-ipc/internal/errqueue"
	"github.com/efprojects/kitten-ipc/internal/fsm"
)

// Child connects back to the parent that launched it.
type Child struct {
	*Engine

	path    string
	timeout time.Duration
}

// NewChild reads the socket path from args, normally os.Args[1:]. caps are
// the capabilities the parent may call.
func NewChild(args []string, caps map[string]Capability, opts Options) (*Child, error) {
	path, err := SocketPathFromArgs(args)
	if err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	engine, err := newEngine(fsm.RoleChild, caps, opts)
	if err != nil {
		return nil, err
	}
	return &Child{Engine: engine, path: path, timeout: opts.AcceptTimeout}, nil
}

// SocketPath is the parent socket this child dials.
func (c *Child) SocketPath() string {
	return c.path
}

// Start dials the parent socket.
func (c *Child) Start(ctx context.Context) error {
	if err := c.transition(fsm.EventDial); err != nil {
		return err
	}

	conn, err := dial(ctx, c.path, c.timeout)
	if err != nil {
		_ = c.transition(fsm.EventFail)
		return fmt.Errorf("connect to parent socket: %w", err)
	}
	if err := c.adopt(conn); err != nil {
		_ = conn.Close()
		_ = c.transition(fsm.EventFail)
		return err
	}
	c.logger.Info("connected to parent", "socket", c.path)
	return nil
}

// Wait blocks until the close sequence has finished, either after Stop or
// after the parent hung up, and returns the errors reported up to then. Errors
// such as malformed lines or orphan responses do not end the connection. Wait
// drains the error queue, so it may only be called once.
func (c *Child) Wait(ctx context.Context) error {
	if !c.connected.Load() {
		return ErrNotStarted
	}

	select {
	case <-c.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	errs, err := c.errs.Drain()
	if err != nil {
		return err
	}
	return errqueue.Combine(errs)
}
