package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/suiterun/packages/core/config"
	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/logging"
	"github.com/abdul-hamid-achik/suiterun/packages/output"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitConfigError, exitCode(withExitCode(ExitConfigError, errors.New("bad"))))

	wrapped := errors.Join(errors.New("context"), withExitCode(ExitInterrupted, nil))
	assert.Equal(t, ExitInterrupted, exitCode(wrapped))
}

func TestResultExitCode(t *testing.T) {
	tests := []struct {
		name   string
		result *runner.Result
		want   int
	}{
		{"all passed", &runner.Result{Complete: true, Passed: 3, Total: 3}, ExitSuccess},
		{"failures", &runner.Result{Complete: true, Passed: 2, Failed: 1, Total: 3}, ExitTestFailure},
		{"crash wins over failure", &runner.Result{Complete: true, Failed: 2, Errors: 1, Total: 2}, ExitFatalError},
		{"incomplete wins over crash", &runner.Result{Complete: false, Failed: 1, Errors: 1, Total: 1}, ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultExitCode(tt.result))
		})
	}
}

func writeFeature(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "a.feature.yaml", "name: a\nsteps:\n  - run: echo a\n")
	writeFeature(t, dir, "notes.yaml", "name: ignored\n")

	features, err := loadFeatures([]string{dir})
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "a", features[0].Name)

	_, err = loadFeatures([]string{t.TempDir()})
	assert.ErrorContains(t, err, "no feature files")
}

func TestDryRun(t *testing.T) {
	features := []*feature.Feature{
		{Name: "login", Tags: []string{"@smoke"}},
		{Name: "export", Tags: []string{"@slow"}},
		{Name: "draft", Tags: []string{"@ignore"}},
	}
	cfg := config.DefaultConfig()
	cfg.Tags = []string{"~@slow"}

	var buf bytes.Buffer
	require.NoError(t, dryRun(&buf, cfg, features))

	out := buf.String()
	assert.Contains(t, out, "Would run:  login [@smoke]")
	assert.Contains(t, out, "Would skip: export [@slow]")
	assert.Contains(t, out, "Would skip: draft [@ignore]")
	assert.Contains(t, out, "1 of 3 features selected")
}

func TestDryRun_BadExpression(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tags = []string{"@a and"}

	err := dryRun(&bytes.Buffer{}, cfg, nil)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestBuildNotifier(t *testing.T) {
	t.Cleanup(func() {
		notifyFlag, teamsWebhookFlag = "", ""
	})
	cfg := config.DefaultConfig()
	cfg.Notify = &config.NotifyConfig{}

	notifyFlag = ""
	m, err := buildNotifier(cfg, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, m)

	notifyFlag = "slack"
	_, err = buildNotifier(cfg, logging.Discard())
	assert.ErrorContains(t, err, "--slack-webhook")

	notifyFlag = "pager"
	_, err = buildNotifier(cfg, logging.Discard())
	assert.ErrorContains(t, err, "unknown notification service")

	notifyFlag = "slack, teams"
	cfg.Notify.SlackWebhook = "https://hooks.example.com/slack"
	teamsWebhookFlag = "https://hooks.example.com/teams"
	m, err = buildNotifier(cfg, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	writeFeature(t, dir, "ok.feature.yaml", "name: ok\nsteps:\n  - run: echo ok\n")
	writeFeature(t, dir, "broken.feature.yaml", "name: broken\nsteps:\n  - run: exit 3\n")

	features, err := loadFeatures([]string{dir})
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Threads = 2
	cfg.BuildDir = filepath.Join(dir, "target")

	var buf bytes.Buffer
	formatter, err := output.New(output.FormatJSON, output.Options{Writer: &buf, NoColor: true})
	require.NoError(t, err)

	settings := &runSettings{cfg: cfg, args: []string{dir}}
	svc := &runServices{logger: logging.Discard()}

	result, err := runOnce(context.Background(), settings, features, svc, formatter, logging.Discard())
	require.NoError(t, err)

	assert.True(t, result.Complete)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, ExitTestFailure, resultExitCode(result))
	assert.Contains(t, buf.String(), `"runId"`)
	assert.FileExists(t, filepath.Join(cfg.BuildDir, "suite-reports", output.ResultsFileName))
}
