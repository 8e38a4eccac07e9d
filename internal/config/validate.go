package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxSocketPath is the portable sun_path limit, terminating NUL included.
const maxSocketPath = 104

// socketNameOverhead covers "-<pid>-<ulid>.sock" for a 7-digit pid.
const socketNameOverhead = 1 + 7 + 1 + 26 + len(".sock")

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"auto": true, "text": true, "json": true}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	prefix := strings.TrimSpace(cfg.IPC.SocketPrefix)
	if prefix == "" {
		return nil, fmt.Errorf("ipc.socket_prefix must not be empty")
	}
	if strings.ContainsRune(prefix, filepath.Separator) {
		return nil, fmt.Errorf("ipc.socket_prefix must not contain %q", filepath.Separator)
	}
	if cfg.IPC.SocketDir != "" && !filepath.IsAbs(cfg.IPC.SocketDir) {
		return nil, fmt.Errorf("ipc.socket_dir must be an absolute path")
	}
	if cfg.IPC.AcceptTimeoutMS <= 0 {
		return nil, fmt.Errorf("ipc.accept_timeout_ms must be > 0")
	}
	if cfg.IPC.MaxMessageBytes <= 0 {
		return nil, fmt.Errorf("ipc.max_message_bytes must be > 0")
	}

	if !logLevels[cfg.Log.Level] {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	if !logFormats[cfg.Log.Format] {
		return nil, fmt.Errorf("log.format must be one of: auto, text, json")
	}

	if cfg.Child.Command.Raw != "" && len(cfg.Child.Command.Argv) == 0 {
		return nil, fmt.Errorf("child command is configured but empty")
	}

	if cfg.IPC.SocketDir != "" {
		if n := len(filepath.Join(cfg.IPC.SocketDir, prefix)) + socketNameOverhead; n >= maxSocketPath {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("socket paths under ipc.socket_dir may reach %d bytes; unix sockets are limited to %d", n, maxSocketPath-1)})
		}
	}
	if cfg.IPC.MaxMessageBytes < 4096 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("ipc.max_message_bytes=%d is very small; most calls will fail", cfg.IPC.MaxMessageBytes)})
	}

	return warnings, nil
}
