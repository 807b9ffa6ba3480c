package xstream

import (
	"fmt"
	"strings"
)

// Strategy selects how regions are dispatched. It is fixed when the
// Runtime is created.
type Strategy int

const (
	// AsyncSignalWait enqueues each region on the stream's device, tagged
	// with the stream's next signal and ordered after the stream's pending
	// work by the host.
	AsyncSignalWait Strategy = iota

	// Synchronous runs every region to completion before Dispatch returns.
	// Regions see signal and pending 0.
	Synchronous

	// BackendStream submits regions to a native device queue owned by the
	// stream; the device orders work within the queue.
	BackendStream
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case Synchronous:
		return "Synchronous"
	case AsyncSignalWait:
		return "AsyncSignalWait"
	case BackendStream:
		return "BackendStream"
	default:
		return "Unknown"
	}
}

// ParseStrategy parses a strategy name as used in flags and
// configuration files. Accepted names, case-insensitive: "sync",
// "synchronous", "signal", "async", "asyncsignalwait", "stream",
// "backend", "backendstream".
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sync", "synchronous":
		return Synchronous, nil
	case "signal", "async", "asyncsignalwait":
		return AsyncSignalWait, nil
	case "stream", "backend", "backendstream":
		return BackendStream, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}
