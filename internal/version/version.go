// Package version carries build metadata set through -ldflags.
package version

import (
	"runtime"
	"strconv"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// ProtocolVersion identifies the wire format spoken by this build.
const ProtocolVersion = 1

func String() string {
	return "kittenipc " + Version + " (commit=" + Commit + ", date=" + Date + ", protocol=v" + strconv.Itoa(ProtocolVersion) + ", go=" + runtime.Version() + ")"
}
