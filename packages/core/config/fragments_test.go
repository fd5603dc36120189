package config

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/suiterun/packages/core/resource"
	"github.com/abdul-hamid-achik/suiterun/packages/logging"
)

func TestEffectiveConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")

	tests := []struct {
		name     string
		explicit string
		props    map[string]string
		env      string
		want     string
	}{
		{"default packaged root", "", nil, "", "classpath:"},
		{"explicit plain dir", "conf", nil, "", "file:conf/"},
		{"explicit file dir with slash", "file:conf/", nil, "", "file:conf/"},
		{"explicit classpath subdir", "classpath:envs", nil, "", "classpath:envs/"},
		{"backslash kept", `file:C:\conf\`, nil, "", `file:C:\conf\`},
		{"property override", "", map[string]string{ConfigDirProperty: " props "}, "", "file:props/"},
		{"explicit wins over property", "mine", map[string]string{ConfigDirProperty: "props"}, "", "file:mine/"},
		{"env fallback", "", nil, "/etc/suite", "file:/etc/suite/"},
		{"property wins over env", "", map[string]string{ConfigDirProperty: "props"}, "/etc/suite", "file:props/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigDirEnv, tt.env)
			assert.Equal(t, tt.want, EffectiveConfigDir(tt.explicit, tt.props))
		})
	}
}

func TestResolveFragments_NothingPresent(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	rec := logging.NewRecorder()
	loc := resource.NewLocator(resource.WithoutDefaults(), resource.WithWorkingDir(t.TempDir()))

	frags := ResolveFragments(loc, rec.Logger(), FragmentOptions{Environment: "qa"})

	assert.Nil(t, frags.Base)
	assert.Nil(t, frags.Main)
	assert.Nil(t, frags.Env)
	assert.Empty(t, frags.All())
	assert.Equal(t, "classpath:", frags.Dir)

	warnings := rec.AtLevel(log.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, FragmentMain, warnings[0].Attrs["fragment"])
}

func TestResolveFragments_MainOnly(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	classpath := fstest.MapFS{
		"suite-config.js": {Data: []byte("function fn() { return { a: 1 }; }")},
	}

	t.Run("no environment", func(t *testing.T) {
		rec := logging.NewRecorder()
		loc := resource.NewLocator(resource.WithoutDefaults(), resource.WithClasspath(classpath))

		frags := ResolveFragments(loc, rec.Logger(), FragmentOptions{})

		require.NotNil(t, frags.Main)
		assert.Contains(t, frags.Main.Source, "a: 1")
		assert.Equal(t, "classpath:suite-config.js", frags.Main.Path)
		assert.Nil(t, frags.Env)
		assert.Empty(t, rec.AtLevel(log.LevelWarn))
		for _, r := range rec.AtLevel(log.LevelTrace) {
			assert.NotEqual(t, FragmentEnv, r.Attrs["fragment"])
		}
	})

	t.Run("environment set but missing", func(t *testing.T) {
		rec := logging.NewRecorder()
		loc := resource.NewLocator(resource.WithoutDefaults(), resource.WithClasspath(classpath))

		frags := ResolveFragments(loc, rec.Logger(), FragmentOptions{Environment: "qa"})

		require.NotNil(t, frags.Main)
		assert.Nil(t, frags.Env)
		assert.Empty(t, rec.AtLevel(log.LevelWarn))

		var envTraces int
		for _, r := range rec.AtLevel(log.LevelTrace) {
			if r.Attrs["fragment"] == FragmentEnv {
				envTraces++
				assert.Equal(t, "classpath:suite-config-qa.js", r.Attrs["path"])
			}
		}
		assert.Equal(t, 1, envTraces)
	})
}

func TestResolveFragments_AllLayersFromFilesystem(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	tmpDir := t.TempDir()
	confDir := filepath.Join(tmpDir, "conf")
	require.NoError(t, os.MkdirAll(confDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "suite-config.js"), []byte("main"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(confDir, "suite-config-qa.js"), []byte("qa"), 0644))

	loc := resource.NewLocator(resource.WithWorkingDir(tmpDir))
	frags := ResolveFragments(loc, logging.Discard(), FragmentOptions{
		SystemProperties: map[string]string{ConfigDirProperty: "conf"},
		Environment:      "qa",
	})

	assert.Equal(t, "file:conf/", frags.Dir)
	require.NotNil(t, frags.Base)
	assert.Equal(t, BaseFragmentPath, frags.Base.Path)
	require.NotNil(t, frags.Main)
	assert.Equal(t, "main", frags.Main.Source)
	require.NotNil(t, frags.Env)
	assert.Equal(t, "qa", frags.Env.Source)

	kinds := []FragmentKind{}
	for _, f := range frags.All() {
		kinds = append(kinds, f.Kind)
	}
	assert.Equal(t, []FragmentKind{FragmentBase, FragmentMain, FragmentEnv}, kinds)
}

func TestResolveFragments_BaseIgnoresConfigDir(t *testing.T) {
	t.Setenv(ConfigDirEnv, "")
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "suite-base.js"), []byte("local base"), 0644))

	rec := logging.NewRecorder()
	loc := resource.NewLocator(resource.WithoutDefaults(), resource.WithWorkingDir(tmpDir))
	frags := ResolveFragments(loc, rec.Logger(), FragmentOptions{ConfigDir: tmpDir})

	assert.Nil(t, frags.Base)
	for _, r := range rec.AtLevel(log.LevelWarn) {
		assert.NotEqual(t, FragmentBase, r.Attrs["fragment"])
	}
}
