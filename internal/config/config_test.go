package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("VERIFICATION_ALLOWED_DOMAINS", "gmail.com")
	t.Setenv("CODE_STORE", "database")

	cfg := Load()
	require.NotNil(t, cfg)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 10*time.Minute, cfg.CodeTTL)
	assert.Equal(t, []string{"gmail.com"}, cfg.AllowedEmailDomains)
	assert.Equal(t, "database", cfg.CodeStore)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("VERIFICATION_CODE_TTL_MINUTES", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MERCADOPAGO_SANDBOX", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://shop.example.com/")
	t.Setenv("SMTP_USERNAME", "")
	t.Setenv("GMAIL_USER", "legacy@gmail.com")

	cfg := Load()
	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, 3*time.Minute, cfg.CodeTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.MercadoPagoSandbox)
	assert.Equal(t, "https://shop.example.com", cfg.PublicBaseURL)
	// An explicitly empty SMTP_USERNAME wins over the legacy fallback.
	assert.Equal(t, "", cfg.SMTPUsername)
}

func TestLoad_JWTSecret(t *testing.T) {
	t.Setenv("CODE_STORE", "database")
	t.Setenv("JWT_SECRET", "")

	t.Run("required outside development", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		_, err := load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("required when APP_ENV is unset", func(t *testing.T) {
		t.Setenv("APP_ENV", "")
		_, err := load()
		assert.Error(t, err)
	})

	t.Run("development secret", func(t *testing.T) {
		t.Setenv("APP_ENV", "Development")
		cfg, err := load()
		require.NoError(t, err)
		assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	})
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	t.Run("redis code store without redis", func(t *testing.T) {
		t.Setenv("CODE_STORE", "redis")
		t.Setenv("REDIS_ADDR", "")
		_, err := load()
		assert.EqualError(t, err, "CODE_STORE=redis requires REDIS_ADDR")
	})

	t.Run("bad admin hash", func(t *testing.T) {
		t.Setenv("CODE_STORE", "database")
		t.Setenv("ADMIN_PASSWORD_HASH", "plain-text")
		_, err := load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ADMIN_PASSWORD_HASH")
	})
}

func TestEmailDomainAllowed(t *testing.T) {
	cfg := &Config{AllowedEmailDomains: []string{"gmail.com"}}
	assert.True(t, cfg.EmailDomainAllowed("ana@gmail.com"))
	assert.True(t, cfg.EmailDomainAllowed("ana@GMAIL.com"))
	assert.False(t, cfg.EmailDomainAllowed("ana@yahoo.com"))
	assert.False(t, cfg.EmailDomainAllowed("not-an-email"))

	open := &Config{}
	assert.True(t, open.EmailDomainAllowed("ana@yahoo.com"))
}
