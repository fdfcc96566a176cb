package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 50, cfg.Safety.DailyActionLimit)
	assert.Equal(t, 50, cfg.Safety.MaxRecipients)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 5*time.Minute, cfg.GetInterval())
	assert.NotEmpty(t, cfg.Operator.Objectives)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Memory.DatabasePath, cfg.Memory.DatabasePath)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
operator:
  name: sales-desk
  email: sales@example.com
  objectives:
    - qualify inbound leads
safety:
  daily_action_limit: 10
scheduler:
  interval: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sales-desk", cfg.Operator.Name)
	assert.Equal(t, []string{"qualify inbound leads"}, cfg.Operator.Objectives)
	assert.Equal(t, 10, cfg.Safety.DailyActionLimit)
	assert.Equal(t, 30*time.Second, cfg.GetInterval())
	// Untouched sections keep defaults.
	assert.Equal(t, 50, cfg.Safety.MaxRecipients)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("operator: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INBOXMIND_API_KEY", "env-key")
	t.Setenv("INBOXMIND_DB", "/tmp/env.db")
	t.Setenv("INBOXMIND_DAILY_LIMIT", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "/tmp/env.db", cfg.Memory.DatabasePath)
	assert.Equal(t, 7, cfg.Safety.DailyActionLimit)
}

func TestEnvOverrideIgnoresBadLimit(t *testing.T) {
	t.Setenv("INBOXMIND_DAILY_LIMIT", "not-a-number")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Safety.DailyActionLimit)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Operator.Name = "support-desk"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "support-desk", loaded.Operator.Name)
}
