package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "*/10 * * * *", cfg.Broker.ParseRSSCron)
	assert.Equal(t, "*/3 * * * *", cfg.Broker.CheckSubsCron)
	assert.Equal(t, "telegram_news", cfg.Queue.TelegramQueue)
	assert.Equal(t, "telegram_news.dead", cfg.Queue.DeadLetterQueue())
	assert.Equal(t, 24*60*60*1e9, float64(cfg.Feeds.GetPreferredHoursPeriod()))
}

func TestLoadConfig_FileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedfusion.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment = "staging"

[broker]
enable_subs_check = false

[ml]
model_dir = "/var/lib/feedfusion/model"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.False(t, cfg.Broker.EnableSubsCheck)
	assert.Equal(t, "/var/lib/feedfusion/model", cfg.ML.ModelDir)
	// untouched defaults survive the merge
	assert.Equal(t, "telegram_news", cfg.Queue.TelegramQueue)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedfusion.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[broker]
enable_ml_autotrain = true

[queue]
telegram_queue = "file_queue"
`), 0o644))

	t.Setenv("TELEGRAM_NEWS_QUEUE", "override_queue")
	t.Setenv("ENABLE_ML_AUTOTRAIN", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "override_queue", cfg.Queue.TelegramQueue)
	assert.False(t, cfg.Broker.EnableMLAutotrain)
}

func TestIsProduction(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.IsProduction())
	cfg.Environment = "Production"
	assert.True(t, cfg.IsProduction())
}
