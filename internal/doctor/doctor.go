// Package doctor runs readiness diagnostics for config, socket directory, and child command.
package doctor

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/efprojects/kitten-ipc/internal/config"
	"github.com/efprojects/kitten-ipc/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	dir := socketDir(cfg.Config)
	dirCheck := checkSocketDir(dir)
	checks = append(checks, dirCheck)
	if dirCheck.Pass {
		checks = append(checks, checkSocketBind(dir, cfg.Config.IPC.SocketPrefix))
	}

	if argv := cfg.Config.Child.Command.Argv; len(argv) > 0 {
		checks = append(checks, checkCommand(argv, "child.command"))
	} else {
		checks = append(checks, Check{Name: "child.command", Pass: true, Message: "not configured; pass a command to `kittenipc run`"})
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	if n := len(cfg.Warnings); n > 0 && cfg.Exists {
		message = fmt.Sprintf("%s with %d warning(s)", message, n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func socketDir(cfg config.Config) string {
	if dir := strings.TrimSpace(cfg.IPC.SocketDir); dir != "" {
		return dir
	}
	return os.TempDir()
}

// checkSocketDir validates that sockets can be created in dir.
func checkSocketDir(dir string) Check {
	info, err := os.Stat(dir)
	if err != nil {
		return Check{Name: "socket.dir", Pass: false, Message: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "socket.dir", Pass: false, Message: fmt.Sprintf("%s is not a directory", dir)}
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return Check{Name: "socket.dir", Pass: false, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	return Check{Name: "socket.dir", Pass: true, Message: fmt.Sprintf("%s is writable", dir)}
}

// checkSocketBind binds and releases a socket named the way a parent would.
func checkSocketBind(dir, prefix string) Check {
	path := ipc.SocketPath(dir, prefix)
	limit := len(unix.RawSockaddrUnix{}.Path) - 1
	if len(path) > limit {
		return Check{Name: "socket.bind", Pass: false, Message: fmt.Sprintf("socket path is %d bytes; limit is %d", len(path), limit)}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return Check{Name: "socket.bind", Pass: false, Message: err.Error()}
	}
	_ = listener.Close()
	_ = os.Remove(path)
	return Check{Name: "socket.bind", Pass: true, Message: fmt.Sprintf("bound %s", path)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
