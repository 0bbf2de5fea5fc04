package config

import (
	"os"
	"testing"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvBool tests the getEnvBool helper function
func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue bool
		envValue     string
		want         bool
	}{
		{
			name:         "returns true for 'true'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "true",
			want:         true,
		},
		{
			name:         "returns true for '1'",
			key:          "TEST_BOOL",
			defaultValue: false,
			envValue:     "1",
			want:         true,
		},
		{
			name:         "returns false for 'false'",
			key:          "TEST_BOOL",
			defaultValue: true,
			envValue:     "false",
			want:         false,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_BOOL_NOT_SET",
			defaultValue: true,
			envValue:     "",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvBool(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvBool() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvInt tests the getEnvInt helper function
func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "returns parsed value",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "returns default for invalid value",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "not-a-number",
			want:         10,
		},
		{
			name:         "returns default when not set",
			key:          "TEST_INT_NOT_SET",
			defaultValue: 10,
			envValue:     "",
			want:         10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_NOT_SET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() = %v, want 1m", got)
	}
}

// TestParseLogLevel tests log level parsing
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  observability.LogLevel
	}{
		{"debug", observability.DebugLevel},
		{"info", observability.InfoLevel},
		{"warn", observability.WarnLevel},
		{"warning", observability.WarnLevel},
		{"error", observability.ErrorLevel},
		{"ERROR", observability.ErrorLevel},
		{"unknown", observability.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "8080",
			HealthPort: "9090",
		},
		Database: DatabaseConfig{
			URL: "postgres://localhost:5432/docuprocess",
		},
		Auth: AuthConfig{
			IssuerURL: "https://auth.example.com",
		},
		RateLimit: RateLimitConfig{
			Window:    60 * time.Second,
			FreeLimit: 60,
			PaidLimit: 120,
			Backend:   "memory",
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			MaxRedirects: 5,
			MaxSizeBytes: 10 * 1024 * 1024,
		},
	}
}

// TestConfigValidate tests configuration validation
func TestConfigValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Errorf("Validate() unexpected error: %v", err)
		}
	})

	t.Run("missing server port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Port = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for missing server port")
		}
	})

	t.Run("same server and health port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.HealthPort = cfg.Server.Port
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for identical server and health port")
		}
	})

	t.Run("missing postgres URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.URL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for missing postgres URL")
		}
	})

	t.Run("missing OIDC issuer", func(t *testing.T) {
		cfg := validConfig()
		cfg.Auth.IssuerURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for missing OIDC issuer URL")
		}
	})

	t.Run("invalid rate limit backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimit.Backend = "memcached"
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for invalid rate limit backend")
		}
	})

	t.Run("redis backend requires redis URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimit.Backend = "redis"
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for redis backend without redis URL")
		}

		cfg.Redis.URL = "localhost:6379"
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() unexpected error with redis URL set: %v", err)
		}
	})

	t.Run("non-positive fetch size", func(t *testing.T) {
		cfg := validConfig()
		cfg.Fetch.MaxSizeBytes = 0
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for non-positive fetch size")
		}
	})

	t.Run("OTel enabled requires endpoint", func(t *testing.T) {
		cfg := validConfig()
		cfg.Observability.OTelEnabled = true
		cfg.Observability.OTelEndpoint = ""
		if err := cfg.Validate(); err == nil {
			t.Error("Expected error for enabled OTel without endpoint")
		}
	})
}

// TestReplicaURLList tests replica URL parsing
func TestReplicaURLList(t *testing.T) {
	cfg := DatabaseConfig{ReplicaURLs: "postgres://r1:5432/db, postgres://r2:5432/db ,"}
	urls := cfg.ReplicaURLList()
	if len(urls) != 2 {
		t.Fatalf("Expected 2 replica URLs, got %d", len(urls))
	}
	if urls[0] != "postgres://r1:5432/db" || urls[1] != "postgres://r2:5432/db" {
		t.Errorf("Unexpected replica URLs: %v", urls)
	}

	empty := DatabaseConfig{}
	if empty.ReplicaURLList() != nil {
		t.Error("Expected nil replica list for empty config")
	}
}

// TestLoadConfigDefaults verifies defaults load and validate with required vars set
func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("DOCUPROCESS_POSTGRES_URL", "postgres://localhost:5432/docuprocess")
	os.Setenv("DOCUPROCESS_OIDC_ISSUER_URL", "https://auth.example.com")
	defer os.Unsetenv("DOCUPROCESS_POSTGRES_URL")
	defer os.Unsetenv("DOCUPROCESS_OIDC_ISSUER_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.RateLimit.FreeLimit != 60 || cfg.RateLimit.PaidLimit != 120 {
		t.Errorf("Unexpected default rate limits: free=%d paid=%d", cfg.RateLimit.FreeLimit, cfg.RateLimit.PaidLimit)
	}
	if cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("Expected 60s window, got %v", cfg.RateLimit.Window)
	}
	if cfg.Fetch.MaxSizeBytes != 10*1024*1024 {
		t.Errorf("Expected 10MB fetch cap, got %d", cfg.Fetch.MaxSizeBytes)
	}
	if cfg.Fetch.MaxRedirects != 5 {
		t.Errorf("Expected 5 max redirects, got %d", cfg.Fetch.MaxRedirects)
	}
}

// TestLoadAuthConfigAdminEmails tests admin email list parsing
func TestLoadAuthConfigAdminEmails(t *testing.T) {
	os.Setenv("DOCUPROCESS_ADMIN_EMAILS", "Admin@Example.com, ops@example.com ,")
	defer os.Unsetenv("DOCUPROCESS_ADMIN_EMAILS")

	cfg := loadAuthConfig()
	if len(cfg.AdminEmails) != 2 {
		t.Fatalf("Expected 2 admin emails, got %d", len(cfg.AdminEmails))
	}
	if cfg.AdminEmails[0] != "admin@example.com" {
		t.Errorf("Expected lowercased email, got %s", cfg.AdminEmails[0])
	}
}
