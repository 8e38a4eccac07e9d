package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/efprojects/kitten-ipc/internal/fsm"
)

func TestSocketPathFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "separate value", args: []string{"--ipc-socket", "/tmp/a.sock"}, want: "/tmp/a.sock"},
		{name: "inline value", args: []string{"--ipc-socket=/tmp/b.sock"}, want: "/tmp/b.sock"},
		{name: "after positional", args: []string{"serve", "--ipc-socket", "/tmp/c.sock"}, want: "/tmp/c.sock"},
		{name: "unknown flags ignored", args: []string{"--verbose", "-q", "--ipc-socket", "/tmp/d.sock"}, want: "/tmp/d.sock"},
		{name: "help flag tolerated", args: []string{"-h", "--ipc-socket", "/tmp/e.sock"}, want: "/tmp/e.sock"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SocketPathFromArgs(tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSocketPathFromArgsMissing(t *testing.T) {
	for _, args := range [][]string{nil, {"serve"}, {"--ipc-socket="}} {
		_, err := SocketPathFromArgs(args)
		require.ErrorIs(t, err, ErrSocketArgMissing)
	}
}

func TestNewChildRequiresSocketFlag(t *testing.T) {
	_, err := NewChild([]string{"serve"}, nil, Options{})
	require.ErrorIs(t, err, ErrSocketArgMissing)
}

func TestNewChildRejectsBadCapability(t *testing.T) {
	_, err := NewChild([]string{SocketFlag, "/tmp/x.sock"}, map[string]Capability{"Bad.Name": Methods{}}, Options{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "register capabilities")
}

func TestChildStartWithoutParent(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "missing.sock")
	c, err := NewChild([]string{SocketFlag, path}, nil, Options{})
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connect to parent socket")
	require.Equal(t, fsm.StateFailed, c.State())
	require.ErrorIs(t, c.Wait(context.Background()), ErrNotStarted)
}

func TestChildWaitResolvesAfterPeerClose(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "parent.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := listener.Accept()
		accepted <- conn
	}()

	c, err := NewChild([]string{"--ipc-socket", path}, calcCaps(), Options{})
	require.NoError(t, err)
	t.Cleanup(c.shutdown)
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, path, c.SocketPath())
	require.Equal(t, fsm.StateRunning, c.State())

	conn := <-accepted
	require.NotNil(t, conn)
	_, err = conn.Write([]byte(`{"type":1,"id":0,"method":"Calc.Div","params":[9,3]}` + "\n"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":2,"id":0,"result":[3]}`, string(buf[:n]))

	require.NoError(t, conn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	require.Equal(t, fsm.StateClosed, c.State())
}

func TestChildWaitReportsQueuedErrorsAfterPeerClose(t *testing.T) {
	path := filepath.Join(shortTempDir(t), "parent.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, _ := listener.Accept()
		accepted <- conn
	}()

	c, err := NewChild([]string{"--ipc-socket", path}, calcCaps(), Options{})
	require.NoError(t, err)
	t.Cleanup(c.shutdown)
	require.NoError(t, c.Start(context.Background()))

	conn := <-accepted
	require.NotNil(t, conn)
	defer conn.Close()

	waitErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		waitErr <- c.Wait(ctx)
	}()

	_, err = conn.Write([]byte(`{"type":2,"id":7,"result":[null]}` + "\n" + "{not json\n"))
	require.NoError(t, err)
	_, err = conn.Write([]byte(`{"type":1,"id":0,"method":"Calc.Div","params":[8,2]}` + "\n"))
	require.NoError(t, err)

	buf := make([]byte, 256)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":2,"id":0,"result":[4]}`, string(buf[:n]))

	select {
	case err := <-waitErr:
		t.Fatalf("Wait returned while the connection was open: %v", err)
	default:
	}
	require.Equal(t, fsm.StateRunning, c.State())

	require.NoError(t, conn.Close())

	var closeErr error
	select {
	case closeErr = <-waitErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the parent closed the connection")
	}
	var multi *MultiError
	require.ErrorAs(t, closeErr, &multi)
	require.Len(t, multi.Errs, 2)
	require.EqualError(t, multi.Errs[0], "received response for unknown call id: 7")
	require.Contains(t, multi.Errs[1].Error(), "decode message")
	require.Equal(t, fsm.StateClosed, c.State())
}

func TestChildWaitAfterStop(t *testing.T) {
	_, child := enginePair(t, nil, calcCaps())
	c := &Child{Engine: child}

	require.NoError(t, c.Stop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	require.Equal(t, fsm.StateClosed, c.State())
}
