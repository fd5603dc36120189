package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/abdul-hamid-achik/suiterun/packages/core/resource"
)

const (
	// ConfigDirProperty is the system property that overrides the config directory
	ConfigDirProperty = "suiterun.config.dir"
	// ConfigDirEnv is the process environment fallback for ConfigDirProperty
	ConfigDirEnv = "SUITERUN_CONFIG_DIR"

	// BaseFragmentPath is always read from the packaged origin
	BaseFragmentPath = resource.ClasspathPrefix + "suite-base.js"
	// MainFragmentFile is the main fragment inside the config directory
	MainFragmentFile = "suite-config.js"
)

// FragmentKind names one layer of configuration
type FragmentKind string

const (
	FragmentBase FragmentKind = "base"
	FragmentMain FragmentKind = "config"
	FragmentEnv  FragmentKind = "config-env"
)

// Fragment is an unevaluated configuration snippet
type Fragment struct {
	Kind   FragmentKind
	Path   string
	Source string
}

// Fragments holds the resolved layers. Any of them may be nil.
type Fragments struct {
	Dir  string
	Base *Fragment
	Main *Fragment
	Env  *Fragment
}

// All returns the present fragments in evaluation order
func (f *Fragments) All() []*Fragment {
	if f == nil {
		return nil
	}
	var out []*Fragment
	for _, frag := range []*Fragment{f.Base, f.Main, f.Env} {
		if frag != nil {
			out = append(out, frag)
		}
	}
	return out
}

// FragmentOptions are the run parameters that drive resolution
type FragmentOptions struct {
	ConfigDir        string
	Environment      string
	SystemProperties map[string]string
}

// fragmentPolicy is the log level used when a fragment is absent
type fragmentPolicy struct {
	kind         FragmentKind
	missingLevel slog.Level
	path         func(dir, env string) string
}

var fragmentPolicies = []fragmentPolicy{
	{
		kind:         FragmentBase,
		missingLevel: log.LevelTrace,
		path:         func(string, string) string { return BaseFragmentPath },
	},
	{
		kind:         FragmentMain,
		missingLevel: log.LevelWarn,
		path:         func(dir, _ string) string { return dir + MainFragmentFile },
	},
	{
		kind:         FragmentEnv,
		missingLevel: log.LevelTrace,
		path: func(dir, env string) string {
			if env == "" {
				return ""
			}
			return dir + "suite-config-" + env + ".js"
		},
	},
}

// ResolveFragments loads the base, main and environment fragments.
// Missing or unreadable fragments are never an error.
func ResolveFragments(loc resource.Locator, logger log.Logger, opts FragmentOptions) *Fragments {
	dir := EffectiveConfigDir(opts.ConfigDir, opts.SystemProperties)
	result := &Fragments{Dir: dir}

	for _, policy := range fragmentPolicies {
		p := policy.path(dir, opts.Environment)
		if p == "" {
			continue
		}

		frag := readFragment(loc, logger, policy.kind, p)
		if frag == nil {
			if policy.missingLevel != log.LevelTrace {
				logger.Write(policy.missingLevel, "Config fragment not found", "fragment", policy.kind, "dir", dir)
			}
			continue
		}

		switch policy.kind {
		case FragmentBase:
			result.Base = frag
		case FragmentMain:
			result.Main = frag
		case FragmentEnv:
			result.Env = frag
		}
	}

	return result
}

func readFragment(loc resource.Locator, logger log.Logger, kind FragmentKind, p string) *Fragment {
	src, err := resource.ReadString(loc, p)
	if err != nil {
		logger.Trace("Config fragment unavailable", "fragment", kind, "path", p, "err", err)
		return nil
	}
	logger.Debug("Loaded config fragment", "fragment", kind, "path", p)
	return &Fragment{Kind: kind, Path: p, Source: src}
}

// EffectiveConfigDir picks the explicit dir, then the system property, then
// the environment variable, then the packaged root, and normalizes the result
// so it carries an origin tag and ends in a separator.
func EffectiveConfigDir(explicit string, props map[string]string) string {
	dir := strings.TrimSpace(explicit)
	if dir == "" {
		dir = strings.TrimSpace(props[ConfigDirProperty])
	}
	if dir == "" {
		dir = strings.TrimSpace(os.Getenv(ConfigDirEnv))
	}
	if dir == "" {
		dir = resource.ClasspathPrefix
	}

	if !resource.HasOrigin(dir) {
		dir = resource.FilePrefix + dir
	}
	if !strings.HasSuffix(dir, ":") && !strings.HasSuffix(dir, "/") && !strings.HasSuffix(dir, `\`) {
		dir += "/"
	}
	return dir
}
