// Package config loads server and client configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the API server configuration.
type Config struct {
	Env            string
	Port           string
	GRPCPort       string // empty disables the gRPC health listener
	MongoURI       string
	MongoDatabase  string
	JWT            JWTConfig
	RateLimitRPM   int
	CookieSecure   bool
	AllowedOrigins []string
	TLS            TLSConfig
	Log            LogConfig
}

// TLSConfig points at a certificate pair. When both files are set the
// HTTP and gRPC listeners serve TLS.
type TLSConfig struct {
	CertFile string
	KeyFile  string
	Require  bool
}

// Enabled reports whether a certificate pair is configured.
func (t TLSConfig) Enabled() bool { return t.CertFile != "" && t.KeyFile != "" }

// JWTConfig describes the signing keys. Keys is non-empty only when
// JWT_KEYS is used for rotation.
type JWTConfig struct {
	Secret    string
	Keys      map[string]string
	ActiveKid string
	TTL       time.Duration
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string
	File  string
}

// ClientConfig holds the terminal client configuration.
type ClientConfig struct {
	APIURL     string
	QABaseURL  string
	QATimeout  time.Duration
	APITimeout time.Duration
	Email      string
	Password   string
	Log        LogConfig
}

// Load reads server configuration from environment variables.
func Load() (*Config, error) {
	keys, err := parseKeys(getEnv("JWT_KEYS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rpm := getEnvInt("RATE_LIMIT_RPM", 10)
	if rpm <= 0 {
		rpm = 10
	}

	cfg := &Config{
		Env:           getEnv("APP_ENV", "production"),
		Port:          getEnv("PORT", "8080"),
		GRPCPort:      getEnv("GRPC_PORT", "50051"),
		MongoURI:      getEnv("MONGODB_URI", ""),
		MongoDatabase: getEnv("MONGODB_DATABASE", "finchat"),
		JWT: JWTConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			Keys:      keys,
			ActiveKid: getEnv("JWT_ACTIVE_KID", ""),
			TTL:       7 * 24 * time.Hour,
		},
		RateLimitRPM:   rpm,
		CookieSecure:   getEnvBool("COOKIE_SECURE", true),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		TLS: TLSConfig{
			CertFile: getEnv("TLS_CERT", ""),
			KeyFile:  getEnv("TLS_KEY", ""),
			Require:  getEnvBool("REQUIRE_TLS", false),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the fields the server cannot start without are set.
// A missing signing key is tolerated: login reports it per request.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MongoURI == "" {
		return fmt.Errorf("MONGODB_URI must be set")
	}
	if c.MongoDatabase == "" {
		return fmt.Errorf("MONGODB_DATABASE cannot be empty")
	}
	if c.TLS.Require && !c.TLS.Enabled() {
		return fmt.Errorf("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if len(c.JWT.Keys) > 0 {
		if _, ok := c.JWT.Keys[c.JWT.ActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q not present in JWT_KEYS", c.JWT.ActiveKid)
		}
	}
	return nil
}

// HasSigningKey reports whether tokens can be issued.
func (c *Config) HasSigningKey() bool {
	return c.JWT.Secret != "" || len(c.JWT.Keys) > 0
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// LoadClient reads the terminal client configuration.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		APIURL:     strings.TrimRight(getEnv("FINCHAT_API_URL", "http://localhost:8080"), "/"),
		QABaseURL:  strings.TrimRight(getEnv("QA_BASE_URL", "https://fastapi-render-a7a4.onrender.com"), "/"),
		QATimeout:  getEnvDuration("QA_TIMEOUT", 60*time.Second),
		APITimeout: getEnvDuration("API_TIMEOUT", 10*time.Second),
		Email:      getEnv("FINCHAT_EMAIL", ""),
		Password:   getEnv("FINCHAT_PASSWORD", ""),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "warn"),
			File:  getEnv("LOG_FILE", ""),
		},
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("invalid configuration: FINCHAT_API_URL cannot be empty")
	}
	if cfg.QABaseURL == "" {
		return nil, fmt.Errorf("invalid configuration: QA_BASE_URL cannot be empty")
	}
	return cfg, nil
}

// parseKeys parses "kid:secret,kid2:secret2".
func parseKeys(raw string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
