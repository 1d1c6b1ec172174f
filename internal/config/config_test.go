package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "finchat", cfg.MongoDatabase)
	assert.Equal(t, 10, cfg.RateLimitRPM)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TTL)
	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.HasSigningKey())
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesRotationKeys(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_KEYS", "k1:one, k2:two")
	t.Setenv("JWT_ACTIVE_KID", "k2")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("COOKIE_SECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"k1": "one", "k2": "two"}, cfg.JWT.Keys)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.False(t, cfg.CookieSecure)
}

func TestLoadRejectsUnknownActiveKid(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_KEYS", "k1:one")
	t.Setenv("JWT_ACTIVE_KID", "missing")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadTLS(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("TLS_CERT", "")
	t.Setenv("TLS_KEY", "")
	t.Setenv("REQUIRE_TLS", "true")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("TLS_CERT", "server.crt")
	t.Setenv("TLS_KEY", "server.key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.TLS.Enabled())
}

func TestLoadClient(t *testing.T) {
	t.Setenv("FINCHAT_API_URL", "http://api.test/")
	t.Setenv("QA_TIMEOUT", "5s")
	t.Setenv("API_TIMEOUT", "nonsense")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://api.test", cfg.APIURL)
	assert.Equal(t, 5*time.Second, cfg.QATimeout)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
}
