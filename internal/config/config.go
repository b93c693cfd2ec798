package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/sockctl/internal/session"
	"github.com/danmuck/sockctl/internal/socket"
)

// ClientConfig is the on-disk shape of one sockctl client.
type ClientConfig struct {
	Name     string `toml:"name"`
	Endpoint string `toml:"endpoint"`

	OutboundCapacity int `toml:"outbound_capacity"`
	InboundCapacity  int `toml:"inbound_capacity"`

	Session SessionConfig `toml:"session"`
}

// SessionConfig tunes connection reliability. Durations are TOML strings
// ("250ms", "5s").
type SessionConfig struct {
	HandshakeTimeout string `toml:"handshake_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	PingInterval     string `toml:"ping_interval"`

	SendRetryLimit int    `toml:"send_retry_limit"`
	SendRetryDelay string `toml:"send_retry_delay"`

	RedialInitialDelay string  `toml:"redial_initial_delay"`
	RedialMultiplier   float64 `toml:"redial_multiplier"`
	RedialMaxDelay     string  `toml:"redial_max_delay"`
	RedialJitter       bool    `toml:"redial_jitter"`

	TLS TLSConfig `toml:"tls"`
}

// TLSConfig applies to wss endpoints only.
type TLSConfig struct {
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	Mutual             bool   `toml:"mutual"`
	CertFile           string `toml:"cert_file"`
	KeyFile            string `toml:"key_file"`
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "sockctl"
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("client config missing name")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return fmt.Errorf("client config missing endpoint")
	}
	if !strings.HasPrefix(cfg.Endpoint, "ws://") && !strings.HasPrefix(cfg.Endpoint, "wss://") {
		return fmt.Errorf("client config endpoint must be ws:// or wss://, got %q", cfg.Endpoint)
	}
	if cfg.OutboundCapacity < 0 || cfg.InboundCapacity < 0 {
		return fmt.Errorf("client config capacities must not be negative")
	}
	if _, err := cfg.Session.durations(); err != nil {
		return fmt.Errorf("client config session invalid: %w", err)
	}
	return nil
}

// ToSocketConfig converts the on-disk shape into the core client config.
// Zero or omitted fields pick up the core defaults.
func (cfg ClientConfig) ToSocketConfig() (socket.Config, error) {
	sc, err := cfg.Session.durations()
	if err != nil {
		return socket.Config{}, err
	}
	return socket.Config{
		Name:             cfg.Name,
		Endpoint:         cfg.Endpoint,
		OutboundCapacity: cfg.OutboundCapacity,
		InboundCapacity:  cfg.InboundCapacity,
		Session:          sc,
	}, nil
}

func (s SessionConfig) durations() (session.Config, error) {
	out := session.Config{
		SendRetryLimit: s.SendRetryLimit,
		Redial: session.Backoff{
			Multiplier: s.RedialMultiplier,
			Jitter:     s.RedialJitter,
		},
		TLS: session.TLSConfig{
			CAFile:             s.TLS.CAFile,
			ServerName:         s.TLS.ServerName,
			InsecureSkipVerify: s.TLS.InsecureSkipVerify,
			Mutual:             s.TLS.Mutual,
			CertFile:           s.TLS.CertFile,
			KeyFile:            s.TLS.KeyFile,
		},
	}
	if err := out.TLS.Validate(); err != nil {
		return session.Config{}, err
	}
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{s.HandshakeTimeout, "handshake_timeout", &out.HandshakeTimeout},
		{s.WriteTimeout, "write_timeout", &out.WriteTimeout},
		{s.PingInterval, "ping_interval", &out.PingInterval},
		{s.SendRetryDelay, "send_retry_delay", &out.SendRetryDelay},
		{s.RedialInitialDelay, "redial_initial_delay", &out.Redial.InitialDelay},
		{s.RedialMaxDelay, "redial_max_delay", &out.Redial.MaxDelay},
	}
	for _, f := range fields {
		raw := strings.TrimSpace(f.raw)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return session.Config{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return out, nil
}
