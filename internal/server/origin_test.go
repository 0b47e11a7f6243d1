package server

import (
	"net/http"
	"testing"
)

// makeRequest creates a fake http.Request with the given Origin header.
func makeRequest(origin string) *http.Request {
	r, _ := http.NewRequest("GET", "/ws/analysis", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginChecking(t *testing.T) {
	tests := []struct {
		name      string
		origins   []string // AllowedOrigins config
		reqOrigin string
		want      bool
	}{
		// Default / development origins
		{"allow localhost:3000", nil, "http://localhost:3000", true},
		{"allow localhost:5173", nil, "http://localhost:5173", true},
		{"block localhost:8080 by default", nil, "http://localhost:8080", false},
		{"block external by default", nil, "https://evil.example.com", false},

		// Wildcard mode
		{"wildcard allows anything", []string{"*"}, "https://example.com", true},

		// Explicit allow list
		{"explicit allow match", []string{"https://ops.restaurant.example"}, "https://ops.restaurant.example", true},
		{"explicit allow mismatch", []string{"https://ops.restaurant.example"}, "https://evil.com", false},
		{"explicit list replaces defaults", []string{"https://ops.restaurant.example"}, "http://localhost:3000", false},
		{"case-insensitive origin", []string{"https://Ops.Restaurant.Example"}, "https://ops.restaurant.example", true},

		// No origin header (non-browser clients)
		{"no origin header allowed", nil, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			up := newUpgrader(tc.origins)
			got := up.CheckOrigin(makeRequest(tc.reqOrigin))
			if got != tc.want {
				t.Errorf("origin=%q, allowed=%v: got %v, want %v",
					tc.reqOrigin, tc.origins, got, tc.want)
			}
		})
	}
}

func TestConfigWithDefaults(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.withDefaults(); got.Port != 8090 || !got.RateLimitEnabled {
		t.Errorf("nil config should yield defaults, got %+v", got)
	}

	cfg := (&Config{Port: 9000, RequestsPerSecond: 2}).withDefaults()
	if cfg.Port != 9000 || cfg.RequestsPerSecond != 2 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if cfg.RateLimitEnabled {
		t.Error("explicit disabled rate limit should stay disabled")
	}
	if cfg.MaxBodyBytes != 32<<20 || cfg.Version != "dev" {
		t.Errorf("zero values not defaulted: %+v", cfg)
	}
}
