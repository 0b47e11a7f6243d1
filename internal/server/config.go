package server

import "time"

// Config represents the HTTP server configuration
type Config struct {
	Host string
	Port int

	// AllowedOrigins lists the origins permitted for CORS and WebSocket
	// connections. Use "*" to allow all origins (development only).
	// Defaults to localhost origins.
	AllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Rate limiting of /api/v1 routes, per client IP
	RateLimitEnabled  bool
	RequestsPerSecond float64
	RateLimitBurst    int

	// MaxBodyBytes caps posted datasets.
	MaxBodyBytes int64

	Version string
}

// DefaultConfig returns the server defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:              8090,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RateLimitEnabled:  true,
		RequestsPerSecond: 5,
		RateLimitBurst:    10,
		MaxBodyBytes:      32 << 20,
		Version:           "dev",
	}
}

func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	out := *c
	if out.Port == 0 {
		out.Port = def.Port
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = def.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = def.WriteTimeout
	}
	if out.ShutdownTimeout <= 0 {
		out.ShutdownTimeout = def.ShutdownTimeout
	}
	if out.RequestsPerSecond <= 0 {
		out.RequestsPerSecond = def.RequestsPerSecond
	}
	if out.RateLimitBurst <= 0 {
		out.RateLimitBurst = def.RateLimitBurst
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = def.MaxBodyBytes
	}
	if out.Version == "" {
		out.Version = def.Version
	}
	return &out
}
