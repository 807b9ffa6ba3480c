package xstream

// Signal is a sequence number on a stream's timeline. The first signal a
// stream hands out is 1; 0 means "no signal" and, as a pending value, an
// idle stream.
type Signal uint64

// NoSignal is the zero signal.
const NoSignal Signal = 0
