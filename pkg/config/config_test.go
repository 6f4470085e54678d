package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no .env file is picked up
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "service")
	require.NoError(t, os.Mkdir(dir, 0o755))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8083", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.SearchTimeout)
	assert.Equal(t, "Showdown", cfg.DefaultContestType)
	assert.Equal(t, 20, cfg.DefaultPortfolioSize)
	assert.Equal(t, 500, cfg.UploadBatchSize)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENV", "production")
	t.Setenv("SEARCH_WORKERS", "4")
	t.Setenv("SEARCH_TIMEOUT", "2m")
	t.Setenv("ENABLE_CACHE", "false")
	t.Setenv("UPLOAD_BATCH_SIZE", "150")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 4, cfg.SearchWorkers)
	assert.Equal(t, 2*time.Minute, cfg.SearchTimeout)
	assert.False(t, cfg.EnableCache)
	assert.Equal(t, 150, cfg.UploadBatchSize)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9100\nDEFAULT_PORTFOLIO_SIZE=150\n"), 0o644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, 150, cfg.DefaultPortfolioSize)
}

func TestLoadConfig_RejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"negative workers", "SEARCH_WORKERS", "-1"},
		{"zero candidate ceiling", "MAX_CANDIDATES", "0"},
		{"oversized upload batch", "UPLOAD_BATCH_SIZE", "501"},
		{"empty portfolio", "DEFAULT_PORTFOLIO_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
