package registry

import "time"

type Config struct {
	ListenAddr string
	// Workers is how many connections are handled at once. 1 handles them
	// strictly one after another.
	Workers int
	// IOTimeout bounds each connection's request. Zero blocks for as long as
	// the peer keeps the connection open.
	IOTimeout time.Duration
	// Advertise announces the node over mDNS.
	Advertise    bool
	InstanceName string
	// MetricsInterval enables periodic metrics logging when non-zero.
	MetricsInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ListenAddr: "0.0.0.0:8000",
		Workers:    1,
	}
}

type Option func(*Config)

func WithListenAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.ListenAddr = addr
		}
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithIOTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.IOTimeout = d
		}
	}
}

func WithAdvertise(instanceName string) Option {
	return func(c *Config) {
		c.Advertise = true
		c.InstanceName = instanceName
	}
}

func WithMetricsInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.MetricsInterval = d
		}
	}
}

// NewConfig applies opts over DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
