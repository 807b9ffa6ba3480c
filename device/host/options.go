package host

// Option configures a host Backend.
type Option func(*config)

type config struct {
	devices  int
	workers  int
	peerWait bool
}

func defaultConfig() config {
	return config{devices: 1}
}

// WithDevices sets the number of devices the backend exposes.
// Values below 1 are ignored.
func WithDevices(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.devices = n
		}
	}
}

// WithWorkers sets the worker goroutines per device.
// 0 (the default) means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.workers = n
		}
	}
}

// WithPeerWait lets work on one device depend on fences produced by
// another device of the same backend.
func WithPeerWait(enabled bool) Option {
	return func(c *config) {
		c.peerWait = enabled
	}
}
