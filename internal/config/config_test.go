package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "600-M", cfg.RateLimit)
	assert.Equal(t, 256, cfg.TemplateCacheSize)
	assert.Equal(t, "JE", cfg.EntryNumberPrefix)
	assert.Equal(t, "REV-", cfg.ReversalPrefix)
	assert.Equal(t, "COP", cfg.DefaultCurrency)
	assert.Equal(t, int64(1), cfg.BalanceToleranceMinor)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.RunMigrations)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("PORT=9000\nDEFAULT_CURRENCY=usd\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("RUN_MIGRATIONS", "true")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.RunMigrations)
	// godotenv sets process variables; drop the ones t.Setenv did not register.
	os.Unsetenv("DEFAULT_CURRENCY")
	os.Unsetenv("LOG_LEVEL")
}

func TestLoadRejectsBadValues(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")

	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load(missing)
	assert.Error(t, err)

	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("TEMPLATE_CACHE_SIZE", "0")
	_, err = Load(missing)
	assert.Error(t, err)

	t.Setenv("TEMPLATE_CACHE_SIZE", "8")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load(missing)
	assert.Error(t, err)
}

func TestLoadRejectsToleranceAboveOneMinorUnit(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")

	t.Setenv("BALANCE_TOLERANCE_MINOR", "5")
	_, err := Load(missing)
	assert.ErrorContains(t, err, "BALANCE_TOLERANCE_MINOR")

	t.Setenv("BALANCE_TOLERANCE_MINOR", "-1")
	_, err = Load(missing)
	assert.Error(t, err)

	t.Setenv("BALANCE_TOLERANCE_MINOR", "0")
	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.BalanceToleranceMinor)
}

func TestLoadRejectsUnknownCurrency(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "none.env")

	t.Setenv("DEFAULT_CURRENCY", "ZZZ")
	_, err := Load(missing)
	assert.ErrorContains(t, err, "DEFAULT_CURRENCY")

	t.Setenv("DEFAULT_CURRENCY", "eur")
	cfg, err := Load(missing)
	require.NoError(t, err)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
}
