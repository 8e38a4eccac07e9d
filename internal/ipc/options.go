package ipc

import (
	"log/slog"
	"os"
	"time"

	"github.com/efprojects/kitten-ipc/internal/protocol"
)

const (
	// DefaultAcceptTimeout bounds how long a parent waits for its child to connect.
	DefaultAcceptTimeout = 10 * time.Second
	// DefaultSocketPrefix starts every parent socket file name.
	DefaultSocketPrefix = "kitten-ipc"
)

// Options tunes a Parent or Child. Zero values select defaults.
type Options struct {
	Logger          *slog.Logger
	AcceptTimeout   time.Duration
	SocketDir       string
	SocketPrefix    string
	MaxMessageBytes int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.AcceptTimeout <= 0 {
		o.AcceptTimeout = DefaultAcceptTimeout
	}
	if o.SocketDir == "" {
		o.SocketDir = os.TempDir()
	}
	if o.SocketPrefix == "" {
		o.SocketPrefix = DefaultSocketPrefix
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = protocol.DefaultMaxLineBytes
	}
	return o
}
