package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/efprojects/kitten-ipc/internal/config"
)

func shortDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "kdoc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "child.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckSocketDir(t *testing.T) {
	require.True(t, checkSocketDir(shortDir(t)).Pass)

	missing := checkSocketDir(filepath.Join(shortDir(t), "absent"))
	require.False(t, missing.Pass)

	file := filepath.Join(shortDir(t), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	notDir := checkSocketDir(file)
	require.False(t, notDir.Pass)
	require.Contains(t, notDir.Message, "not a directory")
}

func TestCheckSocketBind(t *testing.T) {
	dir := shortDir(t)
	check := checkSocketBind(dir, "kitten-ipc")
	require.True(t, check.Pass, check.Message)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCheckSocketBindPathTooLong(t *testing.T) {
	check := checkSocketBind(shortDir(t), strings.Repeat("p", 120))
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "limit is")
}

func TestRunWithChildCommand(t *testing.T) {
	binDir := t.TempDir()
	fakeChild := filepath.Join(binDir, "fake-child")
	require.NoError(t, os.WriteFile(fakeChild, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", binDir+":"+os.Getenv("PATH"))

	cfg := config.Default()
	cfg.IPC.SocketDir = shortDir(t)
	cfg.Child.Command = config.CommandConfig{Raw: "fake-child", Argv: []string{"fake-child"}}

	report := Run(config.Loaded{Path: "/tmp/config.toml", Config: cfg, Exists: true})
	require.True(t, report.OK(), report.String())

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "socket.dir", "socket.bind", "fake-child"}, names)
}

func TestRunSkipsBindWhenDirUnusable(t *testing.T) {
	cfg := config.Default()
	cfg.IPC.SocketDir = filepath.Join(shortDir(t), "absent")

	report := Run(config.Loaded{Path: "/tmp/config.toml", Config: cfg})
	require.False(t, report.OK())
	for _, check := range report.Checks {
		require.NotEqual(t, "socket.bind", check.Name)
	}
	require.Contains(t, report.String(), "[OK] child.command: not configured")
	require.Contains(t, report.String(), "using defaults")
}
