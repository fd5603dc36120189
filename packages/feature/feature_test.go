package feature

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	content := `name: Login
tags: ["@smoke", "@auth"]
steps:
  - name: token
    once: auth-token
    http:
      method: POST
      url: "{{baseUrl}}/login"
      status: 200
      capture:
        token: access_token
  - run: echo {{token}}
  - wait:
      url: http://localhost:9/health
      timeout: 100
`
	f, err := Parse([]byte(content), "features/login.feature.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Login", f.Name)
	assert.Equal(t, []string{"@smoke", "@auth"}, f.Tags)
	assert.Equal(t, "features/login.feature.yaml", f.Key())
	assert.Equal(t, "features", f.Dir())
	require.Len(t, f.Steps, 3)
	assert.Equal(t, StepHTTP, f.Steps[0].Kind())
	assert.Equal(t, "auth-token", f.Steps[0].Once)
	assert.Equal(t, "access_token", f.Steps[0].HTTP.Capture["token"])
	assert.Equal(t, StepRun, f.Steps[1].Kind())
	assert.Equal(t, StepWait, f.Steps[2].Kind())
	assert.Equal(t, "token", f.Steps[0].Label(0))
	assert.Equal(t, "step 2 (run)", f.Steps[1].Label(1))
}

func TestParse_NameFromFile(t *testing.T) {
	f, err := Parse([]byte("steps:\n  - run: echo ok\n"), "dir/health.feature.yml")
	require.NoError(t, err)
	assert.Equal(t, "health", f.Name)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no steps", "name: x\n"},
		{"two kinds", "name: x\nsteps:\n  - run: echo ok\n    wait:\n      url: http://x\n"},
		{"no kind", "name: x\nsteps:\n  - name: nothing\n"},
		{"http without url", "name: x\nsteps:\n  - http:\n      method: GET\n"},
		{"bad yaml", "name: [x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidFeature))
		})
	}
}

func TestKey_InMemory(t *testing.T) {
	f := &Feature{Name: "inline"}
	assert.Equal(t, "inline", f.Key())
	assert.Equal(t, ".", f.Dir())
}

func TestCollect(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "nested")
	require.NoError(t, os.MkdirAll(nested, 0755))

	files := map[string]string{
		filepath.Join(tmpDir, "a.feature.yaml"): "name: a\nsteps:\n  - run: echo ok\n",
		filepath.Join(nested, "b.feature.yml"):  "name: b\nsteps:\n  - run: echo ok\n",
		filepath.Join(tmpDir, "notes.yaml"):     "ignored: true\n",
	}
	for p, c := range files {
		require.NoError(t, os.WriteFile(p, []byte(c), 0644))
	}

	found, err := Collect(tmpDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(tmpDir, "a.feature.yaml"),
		filepath.Join(nested, "b.feature.yml"),
	}, found)

	loaded, err := LoadAll(found)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)

	_, err = Collect(filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}
