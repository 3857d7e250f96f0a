package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "dentalplan", cfg.Database.Database)
	assert.False(t, cfg.Database.Required)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.RedisAddr())
	assert.Equal(t, 5.0, cfg.RateLimit.RatePerSecond)
	assert.Equal(t, int64(20), cfg.RateLimit.Capacity)
	assert.Equal(t, 300, cfg.Cache.ClinicConfigTTL)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("DB_REQUIRED", "true")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("CACHE_CLINIC_CONFIG_TTL", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "https://clinic.example, https://admin.example,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.False(t, cfg.Server.IsDevelopment())
	assert.True(t, cfg.Database.Required)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 0.5, cfg.RateLimit.RatePerSecond)
	// unparseable values keep the default
	assert.Equal(t, 300, cfg.Cache.ClinicConfigTTL)
	assert.Equal(t, []string{"https://clinic.example", "https://admin.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_NAME=from_dotenv\nSERVER_PORT=7000\n"), 0o600))
	t.Setenv("SERVER_PORT", "7100")
	t.Cleanup(func() { os.Unsetenv("DB_NAME") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from_dotenv", cfg.Database.Database)
	assert.Equal(t, 7100, cfg.Server.Port, "environment wins over .env")
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "70000")
	t.Setenv("RATE_LIMIT_STAGE_COST", "50")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "RATE_LIMIT_STAGE_COST")
}
