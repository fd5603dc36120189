package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidConfig is returned when a project file fails schema validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the suiterun project file
type Config struct {
	Environment     string            `yaml:"env,omitempty"`
	Tags            []string          `yaml:"tags,omitempty"`
	Threads         int               `yaml:"threads,omitempty"`
	ConfigDir       string            `yaml:"configDir,omitempty"`
	Classpath       []string          `yaml:"classpath,omitempty"`
	BuildDir        string            `yaml:"buildDir,omitempty"`
	ReportDir       string            `yaml:"reportDir,omitempty"`
	Timeout         int               `yaml:"timeout,omitempty"` // milliseconds
	FollowRedirects *bool             `yaml:"followRedirects,omitempty"`
	ValidateSSL     *bool             `yaml:"validateSSL,omitempty"`
	Proxy           string            `yaml:"proxy,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`    // Default headers for HTTP steps
	Properties      map[string]string `yaml:"properties,omitempty"` // System properties
	Rate            float64           `yaml:"rate,omitempty"`       // Feature starts per second, 0 is unlimited
	Output          string            `yaml:"output,omitempty"`
	NoColor         *bool             `yaml:"noColor,omitempty"`
	HistoryDB       string            `yaml:"historyDB,omitempty"`
	Notify          *NotifyConfig     `yaml:"notify,omitempty"`
	Metrics         *MetricsConfig    `yaml:"metrics,omitempty"`
}

type NotifyConfig struct {
	On           string `yaml:"on,omitempty"`
	SlackWebhook string `yaml:"slackWebhook,omitempty"`
	SlackChannel string `yaml:"slackChannel,omitempty"`
}

type MetricsConfig struct {
	Port int    `yaml:"port,omitempty"`
	File string `yaml:"file,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible project file names, in lookup order
var ConfigFilenames = []string{
	"suiterun.yaml",
	"suiterun.yml",
	".suiterun.yaml",
	"suiterun.json",
}

// LoadConfig loads configuration from the specified path or searches the
// current directory for a project file
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a project file in the given directory.
// Defaults are returned when none exists.
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks a YAML or JSON document against the project file schema
func Validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if doc == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.Environment != "" {
		result.Environment = other.Environment
	}
	if len(other.Tags) > 0 {
		result.Tags = other.Tags
	}
	if other.Threads > 0 {
		result.Threads = other.Threads
	}
	if other.ConfigDir != "" {
		result.ConfigDir = other.ConfigDir
	}
	if len(other.Classpath) > 0 {
		result.Classpath = other.Classpath
	}
	if other.BuildDir != "" {
		result.BuildDir = other.BuildDir
	}
	if other.ReportDir != "" {
		result.ReportDir = other.ReportDir
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.HistoryDB != "" {
		result.HistoryDB = other.HistoryDB
	}
	if other.Notify != nil {
		result.Notify = other.Notify
	}
	if other.Metrics != nil {
		result.Metrics = other.Metrics
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Headers = mergeMaps(c.Headers, other.Headers)
	result.Properties = mergeMaps(c.Properties, other.Properties)

	return &result
}

func mergeMaps(base, over map[string]string) map[string]string {
	if len(base) == 0 && len(over) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// SaveConfig writes the configuration as YAML
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
