package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efprojects/kitten-ipc/internal/doctor"
	"github.com/efprojects/kitten-ipc/internal/ipc"
	"github.com/efprojects/kitten-ipc/internal/version"
)

func newRunCommand(cc *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [--] [COMMAND [ARGS...]]",
		Short: "Spawn a child, serve Host to it and call its Calc capability",
		Long: `Spawn COMMAND (or child.command from the config) with ` + ipc.SocketFlag + ` appended,
wait for it to connect, call Calc.Div and Calc.XorData on it, then close the
connection and report how the child exited.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			argv := args
			if len(argv) == 0 {
				argv = cc.loaded.Config.Child.Command.Argv
			}
			if len(argv) == 0 {
				return usageError{err: errors.New("no child command given and child.command is not configured")}
			}
			return cc.runner.runParent(cmd.Context(), cc.loaded.Config, cc.logger(), argv)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newChildCommand(cc *commandContext) *cobra.Command {
	var socketPath string
	cmd := &cobra.Command{
		Use:   "child",
		Short: "Connect to the parent, serve Calc and call its Host capability",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.runner.runChild(cmd.Context(), cc.loaded.Config, cc.logger(), []string{ipc.SocketFlag, socketPath})
		},
	}
	cmd.Flags().StringVar(&socketPath, "ipc-socket", "", "Parent socket path (appended by the parent)")
	return cmd
}

func newDoctorCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration and environment checks",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := doctor.Run(cc.loaded)
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			if !report.OK() {
				return errors.New("doctor checks failed")
			}
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        noArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}
