package ipc

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// SocketFlag carries the socket path from parent to child. The parent
// appends it to the child's argv; the child reads it back with SocketPathFromArgs.
const SocketFlag = "--ipc-socket"

const socketFlagName = "ipc-socket"

func hasSocketFlag(args []string) bool {
	for _, arg := range args {
		if arg == SocketFlag || strings.HasPrefix(arg, SocketFlag+"=") {
			return true
		}
	}
	return false
}

// SocketPathFromArgs extracts the socket path from a child's arguments.
// Flags it does not know are ignored, so it can run ahead of the
// program's own flag parsing.
func SocketPathFromArgs(args []string) (string, error) {
	fs := pflag.NewFlagSet("kitten-ipc", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.BoolP("help", "h", false, "")
	path := fs.String(socketFlagName, "", "path to the parent's IPC socket")

	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("parse %s: %w", SocketFlag, err)
	}
	if strings.TrimSpace(*path) == "" {
		return "", ErrSocketArgMissing
	}
	return *path, nil
}
