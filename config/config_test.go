package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 10, cfg.PasswordCost)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.Database.UseSSL)
	assert.Equal(t, 15*time.Minute, cfg.Token.AccessTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.Token.RefreshTTL)
	assert.True(t, cfg.Cookie.Secure)
	assert.Equal(t, StorageBackendMinio, cfg.Storage.Backend)
	assert.Equal(t, MQBackendNone, cfg.MQ.Backend)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("ACCESS_TOKEN_EXPIRY", "1h")
	t.Setenv("REFRESH_TOKEN_EXPIRY", "3d")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("STORAGE_BACKEND", "GCS")
	t.Setenv("MQ_BACKEND", "rabbitmq")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.True(t, cfg.Database.UseSSL)
	assert.Equal(t, time.Hour, cfg.Token.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.Token.RefreshTTL)
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, StorageBackendGCS, cfg.Storage.Backend)
	assert.Equal(t, MQBackendRabbitMQ, cfg.MQ.Backend)
}

func TestGetEnvDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("SOME_TTL", "soon")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TTL", time.Minute))

	t.Setenv("SOME_TTL", "-5m")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TTL", time.Minute))

	t.Setenv("SOME_TTL", "xd")
	assert.Equal(t, time.Minute, getEnvDuration("SOME_TTL", time.Minute))
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Backend: StorageBackendMinio},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_SECRET is required")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET is required")

	cfg.Token = TokenConfig{AccessSecret: "same", RefreshSecret: "same"}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")

	cfg.Token.RefreshSecret = "other"
	cfg.Storage.Backend = "s3"
	cfg.MQ.Backend = "kafka"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported STORAGE_BACKEND "s3"`)
	assert.Contains(t, err.Error(), `unsupported MQ_BACKEND "kafka"`)
}
