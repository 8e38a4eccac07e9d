// Package config resolves, parses, validates, and defaults kittenipc configuration.
package config

// Config is the fully materialized runtime configuration used by kittenipc.
type Config struct {
	IPC   IPCConfig
	Log   LogConfig
	Child ChildConfig
}

// IPCConfig controls the parent socket and the connection limits.
type IPCConfig struct {
	SocketDir       string
	SocketPrefix    string
	AcceptTimeoutMS int
	MaxMessageBytes int
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string
	File   string
	Format string
}

// ChildConfig holds the default command spawned by `kittenipc run`.
type ChildConfig struct {
	Command CommandConfig
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
