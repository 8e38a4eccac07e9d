package config

import (
	"log/slog"
	"time"

	"github.com/efprojects/kitten-ipc/internal/ipc"
)

// IPCOptions maps the [ipc] section onto ipc.Options.
func (c Config) IPCOptions(logger *slog.Logger) ipc.Options {
	return ipc.Options{
		Logger:          logger,
		AcceptTimeout:   time.Duration(c.IPC.AcceptTimeoutMS) * time.Millisecond,
		SocketDir:       c.IPC.SocketDir,
		SocketPrefix:    c.IPC.SocketPrefix,
		MaxMessageBytes: c.IPC.MaxMessageBytes,
	}
}
