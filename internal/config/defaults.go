package config

const (
	defaultSocketPrefix    = "kitten-ipc"
	defaultAcceptTimeoutMS = 10_000
	defaultMaxMessageBytes = 1 << 30
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		IPC: IPCConfig{
			SocketDir:       "",
			SocketPrefix:    defaultSocketPrefix,
			AcceptTimeoutMS: defaultAcceptTimeoutMS,
			MaxMessageBytes: defaultMaxMessageBytes,
		},
		Log: LogConfig{
			Level:  "info",
			File:   "",
			Format: "auto",
		},
		Child: ChildConfig{},
	}
}
