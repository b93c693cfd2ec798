package session

import "time"

// Backoff shapes the delay between redial attempts.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines connection reliability defaults for one client.
type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReadLimit        int64

	// SendRetryLimit bounds readiness re-checks for one outgoing item while
	// the handle is still connecting; SendRetryDelay is the pause between
	// re-checks.
	SendRetryLimit int
	SendRetryDelay time.Duration

	Redial Backoff

	// TLS applies only to wss endpoints.
	TLS TLSConfig
}

func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     15 * time.Second,
		PingInterval:     5 * time.Second,
		ReadLimit:        8 * 1024 * 1024,
		SendRetryLimit:   15,
		SendRetryDelay:   20 * time.Millisecond,
		Redial: Backoff{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = def.ReadLimit
	}
	if c.SendRetryLimit <= 0 {
		c.SendRetryLimit = def.SendRetryLimit
	}
	if c.SendRetryDelay <= 0 {
		c.SendRetryDelay = def.SendRetryDelay
	}
	if c.Redial.InitialDelay <= 0 {
		c.Redial.InitialDelay = def.Redial.InitialDelay
	}
	if c.Redial.Multiplier < 1.0 {
		c.Redial.Multiplier = def.Redial.Multiplier
	}
	if c.Redial.MaxDelay <= 0 {
		c.Redial.MaxDelay = def.Redial.MaxDelay
	}
	return c
}
