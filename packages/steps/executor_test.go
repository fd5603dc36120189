package steps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
	"github.com/abdul-hamid-achik/suiterun/packages/logging"
)

func newSuite(t *testing.T, props map[string]string, features ...*feature.Feature) *runner.Suite {
	t.Helper()
	s, err := runner.NewSuite(&runner.Config{
		ForTempUse:       true,
		WorkingDir:       t.TempDir(),
		Threads:          2,
		SystemProperties: props,
		Features:         features,
		Logger:           logging.Discard(),
	})
	require.NoError(t, err)
	return s
}

func parseFeature(t *testing.T, name, content string) *feature.Feature {
	t.Helper()
	f, err := feature.Parse([]byte("name: "+name+"\n"+content), "")
	require.NoError(t, err)
	return f
}

func apiServer(t *testing.T, logins *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			if logins != nil {
				logins.Add(1)
			}
			_, _ = w.Write([]byte(`{"access_token": "abc", "user": {"id": 7}}`))
		case "/me":
			if r.Header.Get("Authorization") != "Bearer abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"name": "ada", "roles": ["admin"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExecute_HTTPCaptureAndExpect(t *testing.T) {
	server := apiServer(t, nil)
	f := parseFeature(t, "profile", `
steps:
  - name: login
    http:
      method: post
      url: "{{baseUrl}}/login"
      capture:
        token: access_token
        userId: user.id
  - http:
      url: "{{baseUrl}}/me"
      headers:
        Authorization: "Bearer {{token}}"
      status: 200
      expect:
        name: ada
        roles.0: admin
  - run: test "{{login.token}}" = "abc" && test "{{userId}}" = "7"
`)
	s := newSuite(t, map[string]string{"baseUrl": server.URL})

	out, err := New().Execute(context.Background(), f, s)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPassed, out.Status, out.Error())
	require.Len(t, out.Steps, 3)
	for _, step := range out.Steps {
		assert.Equal(t, runner.StatusPassed, step.Status, step.Name)
	}
	assert.Equal(t, "login", out.Steps[0].Name)
}

func TestExecute_FailureSkipsRemainingSteps(t *testing.T) {
	server := apiServer(t, nil)
	f := parseFeature(t, "unauthorized", `
steps:
  - http:
      url: "{{baseUrl}}/me"
      status: 200
  - run: echo never
`)
	s := newSuite(t, map[string]string{"baseUrl": server.URL})

	out, err := New().Execute(context.Background(), f, s)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusFailed, out.Status)
	assert.Contains(t, out.Error(), "expected status 200, got 401")
	require.Len(t, out.Steps, 2)
	assert.Equal(t, runner.StatusFailed, out.Steps[0].Status)
	assert.Equal(t, runner.StatusSkipped, out.Steps[1].Status)
}

func TestExecute_ExpectMismatch(t *testing.T) {
	server := apiServer(t, nil)
	s := newSuite(t, map[string]string{"baseUrl": server.URL})

	tests := []struct {
		name    string
		expect  string
		message string
	}{
		{"wrong value", "access_token: xyz", `expected access_token to be "xyz", got "abc"`},
		{"missing path", "refresh_token: x", "refresh_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parseFeature(t, tt.name, `
steps:
  - http:
      url: "{{baseUrl}}/login"
      expect:
        `+tt.expect+`
`)
			out, err := New().Execute(context.Background(), f, s)
			require.NoError(t, err)
			assert.Equal(t, runner.StatusFailed, out.Status)
			assert.Contains(t, out.Error(), tt.message)
		})
	}
}

func TestExecute_RunSteps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shell.feature.yaml")
	content := `name: shell
steps:
  - run: -exit 3
  - run: echo "$SUITERUN_PROP_greeting" > out.txt
  - run: exit 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	f, err := feature.Load(path)
	require.NoError(t, err)

	s := newSuite(t, map[string]string{"greeting": "hello"})
	out, err := New().Execute(context.Background(), f, s)
	require.NoError(t, err)

	assert.Equal(t, runner.StatusFailed, out.Status)
	assert.Equal(t, runner.StatusPassed, out.Steps[0].Status)
	assert.Equal(t, runner.StatusPassed, out.Steps[1].Status)
	assert.Equal(t, runner.StatusFailed, out.Steps[2].Status)

	written, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(string(written)))
}

func TestExecute_OnceStepRunsOncePerSuite(t *testing.T) {
	var logins atomic.Int32
	server := apiServer(t, &logins)

	content := `
steps:
  - name: login
    once: auth
    http:
      method: POST
      url: "{{baseUrl}}/login"
      capture:
        token: access_token
  - http:
      url: "{{baseUrl}}/me"
      headers:
        Authorization: "Bearer {{token}}"
`
	var features []*feature.Feature
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		features = append(features, parseFeature(t, name, content))
	}
	s := newSuite(t, map[string]string{"baseUrl": server.URL}, features...)

	res, err := s.Run(context.Background(), New())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Passed)
	assert.Equal(t, int32(1), logins.Load())
}

func TestExecute_WaitStep(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := newSuite(t, map[string]string{"baseUrl": server.URL})
	exec := New(WithWaitInterval(10 * time.Millisecond))

	ready := parseFeature(t, "ready", `
steps:
  - wait:
      url: "{{baseUrl}}/health"
      timeout: 2000
`)
	out, err := exec.Execute(context.Background(), ready, s)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusPassed, out.Status, out.Error())
	assert.GreaterOrEqual(t, calls.Load(), int32(3))

	never := parseFeature(t, "never", `
steps:
  - wait:
      url: "{{baseUrl}}/health"
      status: 204
      timeout: 100
      interval: 20
`)
	out, err = exec.Execute(context.Background(), never, s)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusFailed, out.Status)
	assert.Contains(t, out.Error(), "expected 204")
}

func TestExecute_InvalidFeatureIsFatal(t *testing.T) {
	s := newSuite(t, nil)
	_, err := New().Execute(context.Background(), &feature.Feature{Name: "empty"}, s)
	assert.ErrorIs(t, err, feature.ErrInvalidFeature)
}

func TestPropertyEnvName(t *testing.T) {
	assert.Equal(t, "SUITERUN_PROP_base_url", propertyEnvName("base.url"))
	assert.Equal(t, "SUITERUN_PROP_API_KEY", propertyEnvName("API_KEY"))
}
