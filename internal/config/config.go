package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Backend       BackendConfig
	Cookie        CookieConfig
	UI            UIConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `validate:"gt=0"`
	Burst             int     `validate:"gt=0"`
	// UploadsPerMinute caps avatar uploads per client; 0 disables the cap.
	UploadsPerMinute int `validate:"gte=0"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string `validate:"required,numeric"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TLS is enabled when both files are set.
	TLSCertFile string `validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `validate:"required_with=TLSCertFile"`
	// TrustedProxies lists the CIDRs whose X-Forwarded-For headers are
	// believed. Empty means the client IP is always the peer address.
	TrustedProxies []string `validate:"dive,cidr"`
}

// TLSEnabled reports whether the server should listen with TLS
func (s ServerConfig) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// TrustedProxyPrefixes returns TrustedProxies parsed as prefixes.
// Entries that do not parse are skipped; Validate rejects them first.
func (s ServerConfig) TrustedProxyPrefixes() []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(s.TrustedProxies))
	for _, cidr := range s.TrustedProxies {
		if p, err := netip.ParsePrefix(cidr); err == nil {
			prefixes = append(prefixes, p.Masked())
		}
	}
	return prefixes
}

// BackendConfig holds the administration API backend configuration
type BackendConfig struct {
	URL                string `validate:"required,url"`
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// CookieConfig holds the cookie rewriting configuration
type CookieConfig struct {
	// ExternalHost is the domain every outgoing cookie is pinned to.
	ExternalHost string `validate:"required,hostname_rfc1123|ip"`
}

// UIConfig holds the static UI bundle configuration
type UIConfig struct {
	DistDir string
}

// AuthConfig holds access token verification configuration
type AuthConfig struct {
	// JWTSecret enables the permissions endpoint when set.
	JWTSecret string `validate:"omitempty,min=16"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogFormat      string `validate:"oneof=json text"`
	OTELEnabled    bool
	MetricsEnabled bool
	ServiceName    string `validate:"required"`
	ServiceVersion string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnv("SERVER_PORT", "3000"),
			ReadTimeout:    parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:   parseDuration("SERVER_WRITE_TIMEOUT", "60s"),
			IdleTimeout:    parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			TLSCertFile:    getEnv("TLS_CERT_FILE", ""),
			TLSKeyFile:     getEnv("TLS_KEY_FILE", ""),
			TrustedProxies: parseList("TRUSTED_PROXIES"),
		},
		Backend: BackendConfig{
			URL:                strings.TrimRight(getEnv("BACKEND_URL", ""), "/"),
			Timeout:            parseDuration("BACKEND_TIMEOUT", "30s"),
			InsecureSkipVerify: parseBool("BACKEND_INSECURE_SKIP_VERIFY", true),
		},
		Cookie: CookieConfig{
			ExternalHost: getEnv("EXTERNAL_HOST", ""),
		},
		UI: UIConfig{
			DistDir: getEnv("UI_DIST_DIR", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			MetricsEnabled: parseBool("METRICS_ENABLED", true),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "opentrusty-console"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 20)),
			Burst:             parseInt("RATELIMIT_BURST", 40),
			UploadsPerMinute:  parseInt("RATELIMIT_UPLOADS_PER_MINUTE", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envNames maps struct fields to the variables that set them, for error messages
var envNames = map[string]string{
	"Config.Server.Port":                 "SERVER_PORT",
	"Config.Server.TLSCertFile":          "TLS_CERT_FILE",
	"Config.Server.TLSKeyFile":           "TLS_KEY_FILE",
	"Config.Backend.URL":                 "BACKEND_URL",
	"Config.Cookie.ExternalHost":         "EXTERNAL_HOST",
	"Config.Auth.JWTSecret":              "JWT_SECRET",
	"Config.Observability.LogLevel":      "LOG_LEVEL",
	"Config.Observability.LogFormat":     "LOG_FORMAT",
	"Config.Observability.ServiceName":   "OTEL_SERVICE_NAME",
	"Config.RateLimit.RequestsPerSecond": "RATELIMIT_RPS",
	"Config.RateLimit.Burst":             "RATELIMIT_BURST",
	"Config.RateLimit.UploadsPerMinute":  "RATELIMIT_UPLOADS_PER_MINUTE",
}

// Validate validates the configuration
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field, _, _ := strings.Cut(fe.Namespace(), "[")
		name := envNames[field]
		if name == "" {
			name = fe.Namespace()
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q check", name, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
