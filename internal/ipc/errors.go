package ipc

import (
	"errors"
	"fmt"

	"github.com/efprojects/kitten-ipc/internal/errqueue"
	"github.com/efprojects/kitten-ipc/internal/pending"
)

var (
	// ErrReservedArg rejects a child command that already carries the socket flag.
	ErrReservedArg = fmt.Errorf("%s must not appear in the child command arguments", SocketFlag)
	// ErrSocketArgMissing means the child was launched without the socket flag.
	ErrSocketArgMissing = errors.New("ipc socket path is missing")
	// ErrAcceptTimeout means the child never connected back in time.
	ErrAcceptTimeout = errors.New("timed out waiting for child connection")
	// ErrExitedBeforeConnect means the child exited cleanly without connecting.
	ErrExitedBeforeConnect = errors.New("command exited before connection established")
	// ErrNotConnected is returned by operations needing an open connection.
	ErrNotConnected = errors.New("connection is not open")
	// ErrStopRequested is returned when Stop is called twice.
	ErrStopRequested = errors.New("close already requested")
	// ErrClosed fails calls still pending when the connection is torn down.
	ErrClosed = errors.New("call cancelled due to ipc termination")
	// ErrNotStarted is returned by Wait before Start.
	ErrNotStarted = errors.New("command is not started yet")
)

// RemoteError is the failure the peer reported for one call.
type RemoteError = pending.RemoteError

// MultiError is returned by Wait when several connection errors accumulated.
type MultiError = errqueue.MultiError

// ProcessExitError describes an unsuccessful child exit.
type ProcessExitError struct {
	Code   int
	Signal string
}

func (e *ProcessExitError) Error() string {
	if e.Signal != "" {
		return "process exited with signal " + e.Signal
	}
	return fmt.Sprintf("process exited with code %d", e.Code)
}
