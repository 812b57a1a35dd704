package netsim

//
// Data model: logging and errors shared across the package
//

import "errors"

// Logger is the logger used throughout this package.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// ErrRoutingFailed indicates that a [Router] could not find a route to
// a hostname, either because it has never heard of the host or because
// every known distance-vector entry for it is infinite.
var ErrRoutingFailed = errors.New("netsim: routing failed")

// ErrNoDefaultProtocol indicates that [NetHelper.SendPacket] was called
// without an explicit protocol and no default protocol was configured.
var ErrNoDefaultProtocol = errors.New("netsim: no default protocol configured")

// ErrNoDefaultLength indicates that [NetHelper.SendPacket] was called
// without an explicit length and no default length was configured.
var ErrNoDefaultLength = errors.New("netsim: no default length configured")

// ErrNoRoute indicates that [NetHelper] could not resolve a destination
// address for a given pair of nodes.
var ErrNoRoute = errors.New("netsim: no route to destination")

// ErrDuplicateAddress indicates an address has already been assigned
// within a topology.
var ErrDuplicateAddress = errors.New("netsim: address already assigned")

// ErrNotImplemented indicates a documented, intentional stub.
var ErrNotImplemented = errors.New("netsim: not implemented")
