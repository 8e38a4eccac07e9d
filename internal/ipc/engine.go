// Package ipc connects a parent process and the child it spawns over a Unix
// socket and lets each side call the capabilities the other exposes.
//
// Both roles share one Engine: it owns the connection, correlates outgoing
// calls with responses, dispatches incoming calls, counts in-flight calls and
// runs the graceful close sequence. Parent and Child add the role-specific
// connection lifecycle on top.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/efprojects/kitten-ipc/internal/dispatch"
	"github.com/efprojects/kitten-ipc/internal/errqueue"
	"github.com/efprojects/kitten-ipc/internal/fsm"
	"github.com/efprojects/kitten-ipc/internal/pending"
	"github.com/efprojects/kitten-ipc/internal/protocol"
)

type (
	Capability = dispatch.Capability
	Methods    = dispatch.Methods
	Method     = dispatch.Method
)

// Engine is the protocol engine shared by both roles.
type Engine struct {
	role     fsm.Role
	logger   *slog.Logger
	registry *dispatch.Registry
	calls    *pending.Table
	errs     *errqueue.Queue
	maxLine  int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     fsm.State
	conn      net.Conn
	inflight  int
	connected atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newEngine(role fsm.Role, caps map[string]Capability, opts Options) (*Engine, error) {
	registry, err := dispatch.NewRegistry(caps)
	if err != nil {
		return nil, fmt.Errorf("register capabilities: %w", err)
	}
	logger := opts.Logger.With("role", string(role))
	logger.Debug("capabilities registered", "capabilities", registry.Names())

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		role:     role,
		logger:   logger,
		registry: registry,
		calls:    pending.NewTable(),
		errs:     errqueue.New(),
		maxLine:  opts.MaxMessageBytes,
		ctx:      ctx,
		cancel:   cancel,
		state:    fsm.StateConstructed,
		done:     make(chan struct{}),
	}, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() fsm.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// InFlight returns the number of incoming calls still being processed.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight
}

// Pending returns the number of outgoing calls awaiting a response.
func (e *Engine) Pending() int {
	return e.calls.Len()
}

// Done is closed once the connection has been torn down.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

func (e *Engine) transition(event fsm.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitionLocked(event)
}

func (e *Engine) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(e.role, e.state, event)
	if err != nil {
		return err
	}
	if next != e.state {
		e.logger.Debug("state change", "from", e.state, "to", next, "event", event)
	}
	e.state = next
	return nil
}

func (e *Engine) raise(err error) {
	if err == nil {
		return
	}
	if !e.errs.Put(err) {
		e.logger.Warn("ipc error after wait returned", "error", err.Error())
		return
	}
	e.logger.Warn("ipc error", "error", err.Error())
}

// adopt takes ownership of an established connection and starts reading.
func (e *Engine) adopt(conn net.Conn) error {
	e.mu.Lock()
	if err := e.transitionLocked(fsm.EventConnect); err != nil {
		e.mu.Unlock()
		return err
	}
	e.conn = conn
	e.mu.Unlock()

	e.connected.Store(true)
	go e.readLoop(conn)
	return nil
}

func (e *Engine) readLoop(conn net.Conn) {
	reader := protocol.NewReader(conn, e.maxLine)
	for {
		line, err := reader.Next()
		if err != nil {
			e.readEnded(err)
			return
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			e.raise(err)
			continue
		}
		e.route(msg)
	}
}

func (e *Engine) readEnded(err error) {
	if e.State() == fsm.StateClosed {
		return
	}
	switch {
	case errors.Is(err, io.EOF):
		e.logger.Info("peer closed connection")
	case errors.Is(err, net.ErrClosed):
		return
	default:
		e.raise(fmt.Errorf("connection closed due to error: %w", err))
	}
	e.requestClose()
}

func (e *Engine) route(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeCall:
		e.mu.Lock()
		e.inflight++
		e.mu.Unlock()
		go e.handleCall(msg)
	case protocol.TypeResponse:
		if !e.calls.Resolve(msg.ID, msg.Result, msg.Error) {
			e.raise(fmt.Errorf("received response for unknown call id: %d", msg.ID))
		}
	}
}

func (e *Engine) handleCall(msg protocol.Message) {
	defer e.finishCall()

	e.logger.Debug("incoming call", "id", msg.ID, "method", msg.Method, "params", len(msg.Params))
	resp := e.registry.Dispatch(e.ctx, msg)
	if resp.Failed() {
		e.logger.Debug("call failed", "id", msg.ID, "method", msg.Method, "error", resp.Error)
	}
	if err := e.send(resp); err != nil {
		e.raise(fmt.Errorf("send response for id=%d: %w", msg.ID, err))
	}
}

func (e *Engine) finishCall() {
	e.mu.Lock()
	e.inflight--
	e.mu.Unlock()
	e.closeIfDrained()
}

func (e *Engine) send(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	conn := e.conn
	open := fsm.Connected(e.state)
	e.mu.Unlock()
	if conn == nil || !open {
		return ErrNotConnected
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Go sends a call and returns without waiting for its response.
func (e *Engine) Go(method string, params ...any) (*pending.Call, error) {
	if !fsm.Connected(e.State()) {
		return nil, ErrNotConnected
	}
	normalized, err := protocol.NormalizeParams(params)
	if err != nil {
		return nil, fmt.Errorf("send call: %w", err)
	}

	call := e.calls.Register(method)
	if err := e.send(protocol.NewCall(call.ID, method, normalized)); err != nil {
		e.calls.Remove(call.ID)
		return nil, fmt.Errorf("send call: %w", err)
	}
	e.logger.Debug("outgoing call", "id", call.ID, "method", method)
	return call, nil
}

// Call invokes method on the peer and waits for its result. Cancelling ctx
// stops the wait only; the peer still runs the call.
func (e *Engine) Call(ctx context.Context, method string, params ...any) ([]any, error) {
	call, err := e.Go(method, params...)
	if err != nil {
		return nil, err
	}
	select {
	case done := <-call.Done:
		return done.Result, done.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop requests a graceful close. The connection is torn down once every
// in-flight incoming call has been answered.
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.state {
	case fsm.StateCloseRequested:
		e.mu.Unlock()
		return ErrStopRequested
	case fsm.StateRunning:
	default:
		e.mu.Unlock()
		return ErrNotConnected
	}
	if err := e.transitionLocked(fsm.EventStop); err != nil {
		e.mu.Unlock()
		return err
	}
	inflight := e.inflight
	e.mu.Unlock()

	e.logger.Info("close requested", "in_flight", inflight)
	e.closeIfDrained()
	return nil
}

// requestClose is Stop for peer-initiated shutdown; it is a no-op unless
// the connection is running.
func (e *Engine) requestClose() {
	e.mu.Lock()
	if e.state == fsm.StateRunning {
		_ = e.transitionLocked(fsm.EventStop)
	}
	e.mu.Unlock()
	e.closeIfDrained()
}

func (e *Engine) closeIfDrained() {
	e.mu.Lock()
	ready := e.state == fsm.StateCloseRequested && e.inflight == 0
	e.mu.Unlock()
	if ready {
		e.shutdown()
	}
}

// shutdown tears the connection down and fails every pending call.
func (e *Engine) shutdown() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		if fsm.Connected(e.state) {
			_ = e.transitionLocked(fsm.EventDrain)
		}
		conn := e.conn
		e.mu.Unlock()

		e.cancel()
		if conn != nil {
			_ = conn.Close()
		}
		if n := e.calls.FailAll(ErrClosed); n > 0 {
			e.logger.Info("failed pending calls on close", "count", n)
		}
		e.logger.Info("connection closed", "unreported_errors", e.errs.Dropped())
		close(e.done)
	})
}
