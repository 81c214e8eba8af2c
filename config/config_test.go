package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 10*time.Minute, cfg.LockoutDuration)
	assert.Equal(t, 3, cfg.LoginRateMax)
	assert.Equal(t, 10*time.Minute, cfg.LoginRateWindow)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 10*time.Minute, cfg.ResetTokenTTL)
	assert.Equal(t, 90, cfg.PasswordExpiryDays)
	assert.True(t, cfg.ResetRequireVerified)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOCKOUT_THRESHOLD", "5")
	t.Setenv("LOGIN_RATE_WINDOW", "1m")
	t.Setenv("TRUST_PROXY_HEADERS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	assert.Equal(t, 5, cfg.LockoutThreshold)
	assert.Equal(t, time.Minute, cfg.LoginRateWindow)
	assert.True(t, cfg.TrustProxyHeaders)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("LOCKOUT_THRESHOLD", "many")
	t.Setenv("JWT_TTL", "soon")
	t.Setenv("COOKIE_SECURE", "maybe")

	cfg := Load()
	assert.Equal(t, 3, cfg.LockoutThreshold)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.CookieSecure)
}

func TestPostgresDSN(t *testing.T) {
	c := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: "5432", DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", c.PostgresDSN())
}
