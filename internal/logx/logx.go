// Package logx defines the leveled logging interface the CLI tools and
// recovery/error hooks use. The storage engine itself never logs; only
// the driver code wrapping it (cmd/gdbmtool and friends) does, through
// this interface, backed by default by Arista's glog-style leveled
// logger and discarding everything unless a caller wires one in.
package logx

// Logger is a minimal leveled logging interface, intentionally narrow so
// any of the ecosystem's structured loggers can satisfy it with a thin
// shim.
type Logger interface {
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Discard is the default Logger: every call is a no-op.
var Discard Logger = discard{}

type discard struct{}

func (discard) Infof(string, ...any)    {}
func (discard) Warningf(string, ...any) {}
func (discard) Errorf(string, ...any)   {}
