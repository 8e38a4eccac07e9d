package ipc

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
)

// ErrSocketInUse means a live listener already owns the socket path.
var ErrSocketInUse = errors.New("ipc socket already in use")

const probeTimeout = 100 * time.Millisecond

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// SocketPath builds a fresh socket path under dir. The pid and a ULID make
// it unique per parent instance.
func SocketPath(dir, prefix string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Now(), entropy)
	entropyMu.Unlock()

	name := fmt.Sprintf("%s-%d-%s.sock", prefix, os.Getpid(), strings.ToLower(id.String()))
	return filepath.Join(dir, name)
}

// endpoint is the listening side of one parent socket. The lock file next to
// the socket keeps two parents from claiming the same path.
type endpoint struct {
	path     string
	lock     *flock.Flock
	listener net.Listener
	once     sync.Once
}

func newEndpoint(path string) *endpoint {
	return &endpoint{path: path, lock: flock.New(path + ".lock")}
}

func (ep *endpoint) listen(ctx context.Context) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(ep.path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure socket dir: %w", err)
	}

	locked, err := ep.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock socket %s: %w", ep.path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrSocketInUse, ep.path)
	}

	listener, err := acquire(ctx, ep.path)
	if err != nil {
		_ = ep.lock.Unlock()
		return nil, err
	}
	ep.listener = listener
	return listener, nil
}

// close stops listening and removes the socket and lock files. Safe to call
// more than once and before listen.
func (ep *endpoint) close() {
	ep.once.Do(func() {
		if ep.listener != nil {
			_ = ep.listener.Close()
		}
		_ = os.Remove(ep.path)
		if ep.lock.Locked() {
			_ = ep.lock.Unlock()
			_ = os.Remove(ep.lock.Path())
		}
	})
}

// acquire listens on path, clearing a stale socket file left by a dead owner.
func acquire(ctx context.Context, path string) (net.Listener, error) {
	listener, err := net.Listen("unix", path)
	if err == nil {
		_ = os.Chmod(path, 0o600)
		return listener, nil
	}
	if !isAddrInUse(err) {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}

	alive, probeErr := probe(ctx, path)
	if alive {
		return nil, fmt.Errorf("%w: %s", ErrSocketInUse, path)
	}
	if probeErr != nil {
		return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}

	listener, err = net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen unix %s: %w", path, err)
	}
	_ = os.Chmod(path, 0o600)
	return listener, nil
}

// probe reports whether something still accepts connections on path.
func probe(ctx context.Context, path string) (bool, error) {
	conn, err := dial(ctx, path, probeTimeout)
	if err == nil {
		_ = conn.Close()
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, err
}

func dial(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	return dialer.DialContext(ctx, "unix", path)
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
