package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAndLoadConfig_Defaults(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.GetFollowRedirects())
	assert.True(t, cfg.GetValidateSSL())
	assert.False(t, cfg.GetNoColor())
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	content := `env: qa
tags: ["@smoke"]
threads: 4
reportDir: out/reports
validateSSL: false
properties:
  baseUrl: http://localhost:8080
notify:
  on: failure
  slackWebhook: https://hooks.example.com/x
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "suiterun.yaml"), []byte(content), 0644))

	cfg, err := FindAndLoadConfig(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "qa", cfg.Environment)
	assert.Equal(t, []string{"@smoke"}, cfg.Tags)
	assert.Equal(t, 4, cfg.Threads)
	assert.Equal(t, "out/reports", cfg.ReportDir)
	assert.False(t, cfg.GetValidateSSL())
	assert.Equal(t, DefaultTimeoutMs, cfg.Timeout)
	assert.Equal(t, "http://localhost:8080", cfg.Properties["baseUrl"])
	require.NotNil(t, cfg.Notify)
	assert.Equal(t, "failure", cfg.Notify.On)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"threads": 2, "output": "junit"}`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Threads)
	assert.Equal(t, "junit", cfg.Output)
}

func TestLoadConfig_SchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero threads", "threads: 0\n"},
		{"unknown key", "thread: 3\n"},
		{"bad output", "output: pdf\n"},
		{"bad notify policy", "notify:\n  on: sometimes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "suiterun.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := LoadConfig(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestValidate_EmptyDocument(t *testing.T) {
	assert.NoError(t, Validate([]byte("# nothing here\n")))
}

func TestConfig_Merge(t *testing.T) {
	base := DefaultConfig()
	base.Headers = map[string]string{"X-A": "1"}
	base.Properties = map[string]string{"a": "1", "b": "1"}

	other := &Config{
		Environment: "staging",
		Threads:     8,
		ValidateSSL: BoolPtr(false),
		Headers:     map[string]string{"X-B": "2"},
		Properties:  map[string]string{"b": "2"},
	}

	merged := base.Merge(other)
	assert.Equal(t, "staging", merged.Environment)
	assert.Equal(t, 8, merged.Threads)
	assert.False(t, merged.GetValidateSSL())
	assert.True(t, merged.GetFollowRedirects())
	assert.Equal(t, map[string]string{"X-A": "1", "X-B": "2"}, merged.Headers)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, merged.Properties)

	// the receiver is untouched
	assert.Equal(t, 1, base.Threads)
	assert.Equal(t, "1", base.Properties["b"])

	assert.Same(t, base, base.Merge(nil))
}

func TestConfig_SaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suiterun.yaml")
	cfg := DefaultConfig()
	cfg.Environment = "dev"
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", loaded.Environment)
}
