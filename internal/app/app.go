// Package app wires configuration, logging, and the ipc runtime into the
// kittenipc command tree.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efprojects/kitten-ipc/internal/config"
	"github.com/efprojects/kitten-ipc/internal/ipc"
	"github.com/efprojects/kitten-ipc/internal/logging"
	"github.com/efprojects/kitten-ipc/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// usageError marks failures caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func (r Runner) Execute(ctx context.Context, args []string) int {
	cc := &commandContext{runner: r}
	defer cc.close()

	root := newRootCommand(cc)
	root.SetArgs(args)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	if isUsageError(err) {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, root.UsageString())
		return exitUsage
	}

	fmt.Fprintf(r.Stderr, "error: %v\n", err)
	cc.logger().Error("command failed", "error", err.Error())

	var exitErr *ipc.ProcessExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return exitFailure
}

func isUsageError(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// commandContext carries config and logging from the root pre-run into
// subcommands.
type commandContext struct {
	runner     Runner
	configPath string
	loaded     config.Loaded
	log        *slog.Logger
	logRuntime logging.Runtime
}

func (c *commandContext) logger() *slog.Logger {
	if c.log != nil {
		return c.log
	}
	return slog.New(slog.DiscardHandler)
}

func (c *commandContext) ensureConfig() error {
	loaded, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.loaded = loaded

	c.log = c.runner.Logger
	if c.log == nil {
		runtime, err := logging.New(loaded.Config.Log, c.runner.Stderr)
		if err != nil {
			return fmt.Errorf("setup logging: %w", err)
		}
		c.logRuntime = runtime
		c.log = runtime.Logger
	}

	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if loaded.Exists {
			fmt.Fprintf(c.runner.Stderr, "warning: %s\n", msg)
		}
		c.log.Warn("config warning", "line", w.Line, "message", w.Message)
	}
	return nil
}

func (c *commandContext) close() {
	_ = c.logRuntime.Close()
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func newRootCommand(cc *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:           "kittenipc",
		Short:         "Bidirectional RPC between a parent process and the child it spawns",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			if err := cc.ensureConfig(); err != nil {
				return err
			}
			cc.logger().Debug("command start",
				"command", cmd.Name(),
				"config", cc.loaded.Path,
				"log", cc.logRuntime.Path,
			)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.PersistentFlags().StringVarP(&cc.configPath, "config", "c", "", "Config file path (default: $XDG_CONFIG_HOME/kittenipc/config.toml)")

	root.AddCommand(newRunCommand(cc))
	root.AddCommand(newChildCommand(cc))
	root.AddCommand(newDoctorCommand(cc))
	root.AddCommand(newVersionCommand())
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageError{err: fmt.Errorf("unexpected arguments for %q: %s", cmd.Name(), strings.Join(args, " "))}
	}
	return nil
}
