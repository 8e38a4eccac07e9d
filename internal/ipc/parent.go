package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/efprojects/kitten-ipc/internal/errqueue"
	"github.com/efprojects/kitten-ipc/internal/fsm"
)

// Parent spawns a child process and serves it over a private socket.
type Parent struct {
	*Engine

	cmd      *exec.Cmd
	endpoint *endpoint
	timeout  time.Duration

	spawned atomic.Bool
	exited  chan struct{}
	exitErr error
}

// NewParent prepares cmd to be launched with the socket flag appended to its
// arguments. caps are the capabilities the child may call.
func NewParent(cmd *exec.Cmd, caps map[string]Capability, opts Options) (*Parent, error) {
	if cmd == nil {
		return nil, errors.New("nil command")
	}
	if len(cmd.Args) > 1 && hasSocketFlag(cmd.Args[1:]) {
		return nil, ErrReservedArg
	}

	opts = opts.withDefaults()
	engine, err := newEngine(fsm.RoleParent, caps, opts)
	if err != nil {
		return nil, err
	}

	path := SocketPath(opts.SocketDir, opts.SocketPrefix)
	if len(cmd.Args) == 0 {
		cmd.Args = []string{cmd.Path}
	}
	cmd.Args = append(cmd.Args, SocketFlag, path)
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	return &Parent{
		Engine:   engine,
		cmd:      cmd,
		endpoint: newEndpoint(path),
		timeout:  opts.AcceptTimeout,
		exited:   make(chan struct{}),
	}, nil
}

// SocketPath is the path handed to the child.
func (p *Parent) SocketPath() string {
	return p.endpoint.path
}

// Pid returns the child's process id, or 0 before it is spawned.
func (p *Parent) Pid() int {
	if !p.spawned.Load() || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Start listens, spawns the child and blocks until it connects, the accept
// timeout elapses, the child exits or ctx is cancelled. Every failure is
// also reported by Wait.
func (p *Parent) Start(ctx context.Context) error {
	if err := p.transition(fsm.EventListen); err != nil {
		return err
	}

	listener, err := p.endpoint.listen(ctx)
	if err != nil {
		return p.fail(fmt.Errorf("listen: %w", err))
	}
	p.logger.Info("listening", "socket", p.endpoint.path)

	if err := p.cmd.Start(); err != nil {
		p.endpoint.close()
		return p.fail(fmt.Errorf("start process: %w", err))
	}
	p.spawned.Store(true)
	_ = p.transition(fsm.EventSpawn)
	p.logger.Info("child spawned", "pid", p.cmd.Process.Pid, "command", p.cmd.Path)

	go p.supervise()
	return p.accept(ctx, listener)
}

func (p *Parent) supervise() {
	p.exitErr = p.cmd.Wait()
	p.logger.Info("child exited", "pid", p.cmd.Process.Pid, "error", errString(p.exitErr))
	close(p.exited)
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func (p *Parent) accept(ctx context.Context, listener net.Listener) error {
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := listener.Accept()
		accepted <- acceptResult{conn: conn, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	abandon := func() {
		p.endpoint.close()
		go func() {
			if res := <-accepted; res.conn != nil {
				_ = res.conn.Close()
			}
		}()
	}

	select {
	case res := <-accepted:
		p.endpoint.close()
		if res.err != nil {
			p.kill()
			return p.fail(fmt.Errorf("accept: %w", res.err))
		}
		if err := p.adopt(res.conn); err != nil {
			_ = res.conn.Close()
			p.kill()
			return p.fail(err)
		}
		p.logger.Info("child connected", "pid", p.cmd.Process.Pid)
		return nil

	case <-timer.C:
		p.kill()
		abandon()
		p.raise(ErrAcceptTimeout)
		_ = p.transition(fsm.EventTimeout)
		return ErrAcceptTimeout

	case <-p.exited:
		abandon()
		err := exitStatus(p.exitErr, false)
		p.raise(err)
		_ = p.transition(fsm.EventExit)
		return err

	case <-ctx.Done():
		p.kill()
		abandon()
		return p.fail(ctx.Err())
	}
}

func (p *Parent) fail(err error) error {
	p.raise(err)
	_ = p.transition(fsm.EventFail)
	return err
}

func (p *Parent) kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// Wait blocks until the child exits or an error is reported. Queued errors
// take precedence over the exit status. An error that leaves the connection
// running, such as a malformed line, is returned without closing it; call
// Stop to close it. Wait drains the error queue, so it may only be called
// once.
func (p *Parent) Wait(ctx context.Context) error {
	if !p.spawned.Load() {
		errs, err := p.errs.Drain()
		if err != nil {
			return err
		}
		if len(errs) == 0 {
			return ErrNotStarted
		}
		return errqueue.Combine(errs)
	}

	exited := false
	select {
	case <-p.exited:
		exited = true
	case <-p.errs.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	errs, err := p.errs.Drain()
	if err != nil {
		return err
	}
	if exited || !fsm.Connected(p.State()) {
		p.shutdown()
		p.endpoint.close()
	}

	if len(errs) > 0 {
		return errqueue.Combine(errs)
	}
	return exitStatus(p.exitErr, p.connected.Load())
}

// exitStatus maps the result of cmd.Wait to the error Wait reports.
func exitStatus(err error, connected bool) error {
	if err == nil {
		if !connected {
			return ErrExitedBeforeConnect
		}
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("wait for process: %w", err)
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		name := unix.SignalName(status.Signal())
		if name == "" {
			name = status.Signal().String()
		}
		return &ProcessExitError{Code: -1, Signal: name}
	}
	return &ProcessExitError{Code: exitErr.ExitCode()}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
