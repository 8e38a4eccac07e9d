package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/efprojects/kitten-ipc/internal/config"
	"github.com/efprojects/kitten-ipc/internal/demo"
	"github.com/efprojects/kitten-ipc/internal/ipc"
)

// runParent spawns argv as the child and drives one demo session against it.
func (r Runner) runParent(ctx context.Context, cfg config.Config, logger *slog.Logger, argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	caps := map[string]ipc.Capability{demo.HostName: demo.Host{Logger: logger}}
	parent, err := ipc.NewParent(cmd, caps, cfg.IPCOptions(logger))
	if err != nil {
		return err
	}
	if err := parent.Start(ctx); err != nil {
		return err
	}
	logger.Info("child connected", "pid", parent.Pid(), "socket", parent.SocketPath())

	lines, callErr := exerciseCalc(ctx, demo.CalcClient{Caller: parent})
	for _, line := range lines {
		fmt.Fprintln(r.Stdout, line)
	}

	if err := parent.Stop(); err != nil && !errors.Is(err, ipc.ErrNotConnected) && !errors.Is(err, ipc.ErrStopRequested) {
		logger.Warn("stop failed", "error", err.Error())
	}
	return errors.Join(callErr, parent.Wait(ctx))
}

// exerciseCalc issues the demo calls concurrently and returns their report
// lines in a fixed order.
func exerciseCalc(ctx context.Context, calc demo.CalcClient) ([]string, error) {
	lines := make([]string, 3)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := calc.Div(gctx, 10, 2)
		if err != nil {
			return fmt.Errorf("Calc.Div(10, 2): %w", err)
		}
		lines[0] = fmt.Sprintf("Calc.Div(10, 2) = %d", v)
		return nil
	})
	g.Go(func() error {
		_, err := calc.Div(gctx, 10, 0)
		var remote *ipc.RemoteError
		if !errors.As(err, &remote) {
			return fmt.Errorf("Calc.Div(10, 0): expected a remote error, got %v", err)
		}
		lines[1] = fmt.Sprintf("Calc.Div(10, 0) failed: %s", remote.Message)
		return nil
	})
	g.Go(func() error {
		a := bytes.Repeat([]byte{0b10101010}, 10)
		b := bytes.Repeat([]byte{0b11110000}, 10)
		v, err := calc.XorData(gctx, a, b)
		if err != nil {
			return fmt.Errorf("Calc.XorData: %w", err)
		}
		lines[2] = fmt.Sprintf("Calc.XorData = %x", v)
		return nil
	})

	err := g.Wait()
	out := lines[:0]
	for _, line := range lines {
		if line != "" {
			out = append(out, line)
		}
	}
	return out, err
}

// runChild connects to the parent named in args, greets it through Host and
// serves Calc until the parent closes the connection.
func (r Runner) runChild(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	caps := map[string]ipc.Capability{demo.CalcName: demo.Calc{}}
	child, err := ipc.NewChild(args, caps, cfg.IPCOptions(logger))
	if err != nil {
		return err
	}
	if err := child.Start(ctx); err != nil {
		return err
	}

	host := demo.HostClient{Caller: child}
	// The parent may close before answering Echo.
	echoed, err := host.Echo(ctx, fmt.Sprintf("child %d connected", os.Getpid()))
	switch {
	case err == nil:
		logger.Info("parent echoed", "message", echoed)
		if now, err := host.Now(ctx); err == nil {
			logger.Debug("parent clock", "now", now)
		}
	case errors.Is(err, ipc.ErrClosed), errors.Is(err, ipc.ErrNotConnected):
		logger.Info("parent closed before answering Host.Echo")
	default:
		logger.Warn("Host.Echo failed", "error", err.Error())
	}

	return child.Wait(ctx)
}
