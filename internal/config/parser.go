package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type tomlConfig struct {
	IPC   *tomlIPC   `toml:"ipc"`
	Log   *tomlLog   `toml:"log"`
	Child *tomlChild `toml:"child"`
}

type tomlIPC struct {
	SocketDir       *string `toml:"socket_dir"`
	SocketPrefix    *string `toml:"socket_prefix"`
	AcceptTimeoutMS *int    `toml:"accept_timeout_ms"`
	MaxMessageBytes *int    `toml:"max_message_bytes"`
}

type tomlLog struct {
	Level  *string `toml:"level"`
	File   *string `toml:"file"`
	Format *string `toml:"format"`
}

type tomlChild struct {
	Command     []string `toml:"command"`
	CommandLine *string  `toml:"command_line"`
}

// Parse reads TOML configuration content on top of base and validates the result.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		validatedWarnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, validatedWarnings, nil
	}

	decoder := toml.NewDecoder(strings.NewReader(content))
	decoder.DisallowUnknownFields()

	var payload tomlConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapTOMLDecodeError(err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload tomlConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.IPC != nil {
		if payload.IPC.SocketDir != nil {
			cfg.IPC.SocketDir = strings.TrimSpace(*payload.IPC.SocketDir)
		}
		if payload.IPC.SocketPrefix != nil {
			cfg.IPC.SocketPrefix = strings.TrimSpace(*payload.IPC.SocketPrefix)
		}
		if payload.IPC.AcceptTimeoutMS != nil {
			cfg.IPC.AcceptTimeoutMS = *payload.IPC.AcceptTimeoutMS
		}
		if payload.IPC.MaxMessageBytes != nil {
			cfg.IPC.MaxMessageBytes = *payload.IPC.MaxMessageBytes
		}
	}

	if payload.Log != nil {
		if payload.Log.Level != nil {
			cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
		}
		if payload.Log.File != nil {
			cfg.Log.File = strings.TrimSpace(*payload.Log.File)
		}
		if payload.Log.Format != nil {
			cfg.Log.Format = strings.ToLower(strings.TrimSpace(*payload.Log.Format))
		}
	}

	if payload.Child != nil {
		switch {
		case len(payload.Child.Command) > 0:
			cfg.Child.Command = CommandConfig{
				Raw:  strings.Join(payload.Child.Command, " "),
				Argv: append([]string(nil), payload.Child.Command...),
			}
			if payload.Child.CommandLine != nil {
				warnings = append(warnings, Warning{Message: "child.command_line ignored because child.command is set"})
			}
		case payload.Child.CommandLine != nil:
			argv, err := parseArgv(*payload.Child.CommandLine)
			if err != nil {
				return nil, fmt.Errorf("child.command_line: %w", err)
			}
			cfg.Child.Command = CommandConfig{Raw: strings.TrimSpace(*payload.Child.CommandLine), Argv: argv}
		}
	}

	return warnings, nil
}

func wrapTOMLDecodeError(err error) error {
	var strict *toml.StrictMissingError
	if errors.As(err, &strict) {
		keys := make([]string, 0, len(strict.Errors))
		for _, keyErr := range strict.Errors {
			keys = append(keys, strings.Join(keyErr.Key(), "."))
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown config key(s): %s", strings.Join(keys, ", "))
	}

	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		row, col := decodeErr.Position()
		return fmt.Errorf("line %d column %d: %s", row, col, decodeErr.Error())
	}
	return err
}
