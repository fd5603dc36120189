package feature

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidFeature is returned when a feature file is structurally wrong
var ErrInvalidFeature = errors.New("invalid feature")

// Extensions are the file suffixes Collect picks up
var Extensions = []string{".feature.yaml", ".feature.yml"}

type Feature struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Steps       []*Step  `yaml:"steps"`

	// Path is the file the feature was loaded from, empty for in-memory features
	Path string `yaml:"-"`
}

// Key identifies the feature inside a run
func (f *Feature) Key() string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

// Dir is the directory relative step commands run in
func (f *Feature) Dir() string {
	if f.Path == "" {
		return "."
	}
	return filepath.Dir(f.Path)
}

type StepKind string

const (
	StepRun  StepKind = "run"
	StepHTTP StepKind = "http"
	StepWait StepKind = "wait"
)

type Step struct {
	Name string `yaml:"name,omitempty"`
	// Once memoizes the step's captures under this key for the whole run
	Once string    `yaml:"once,omitempty"`
	Run  string    `yaml:"run,omitempty"`
	HTTP *HTTPStep `yaml:"http,omitempty"`
	Wait *WaitStep `yaml:"wait,omitempty"`
}

type HTTPStep struct {
	Method  string            `yaml:"method,omitempty"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
	Status  int               `yaml:"status,omitempty"`
	Expect  map[string]string `yaml:"expect,omitempty"`  // gjson path -> expected value
	Capture map[string]string `yaml:"capture,omitempty"` // variable -> gjson path
}

type WaitStep struct {
	URL      string `yaml:"url"`
	Status   int    `yaml:"status,omitempty"`
	Timeout  int    `yaml:"timeout,omitempty"`  // milliseconds
	Interval int    `yaml:"interval,omitempty"` // milliseconds
}

// Kind reports which action the step performs, or "" when it has none or several
func (s *Step) Kind() StepKind {
	var kinds []StepKind
	if strings.TrimSpace(s.Run) != "" {
		kinds = append(kinds, StepRun)
	}
	if s.HTTP != nil {
		kinds = append(kinds, StepHTTP)
	}
	if s.Wait != nil {
		kinds = append(kinds, StepWait)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Label is a human readable step name
func (s *Step) Label(i int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("step %d (%s)", i+1, s.Kind())
}

// Validate checks the structural rules every feature must follow
func (f *Feature) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidFeature)
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidFeature, f.Name)
	}
	for i, s := range f.Steps {
		if s == nil {
			return fmt.Errorf("%w: %s step %d is empty", ErrInvalidFeature, f.Name, i+1)
		}
		switch s.Kind() {
		case "":
			return fmt.Errorf("%w: %s step %d must have exactly one of run, http or wait", ErrInvalidFeature, f.Name, i+1)
		case StepHTTP:
			if s.HTTP.URL == "" {
				return fmt.Errorf("%w: %s step %d has no url", ErrInvalidFeature, f.Name, i+1)
			}
		case StepWait:
			if s.Wait.URL == "" {
				return fmt.Errorf("%w: %s step %d has no url", ErrInvalidFeature, f.Name, i+1)
			}
		}
	}
	return nil
}

// Parse decodes and validates a feature document
func Parse(data []byte, path string) (*Feature, error) {
	f := &Feature{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFeature, path, err)
	}
	f.Path = path
	if f.Name == "" && path != "" {
		f.Name = baseName(path)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Load reads a feature file from disk
func Load(path string) (*Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature: %w", err)
	}
	return Parse(data, path)
}

// LoadAll loads every path, stopping at the first broken file
func LoadAll(paths []string) ([]*Feature, error) {
	features := make([]*Feature, 0, len(paths))
	for _, p := range paths {
		f, err := Load(p)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, nil
}

// Collect expands files and directories into the list of feature files under them
func Collect(args ...string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && IsFeatureFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if IsFeatureFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func IsFeatureFile(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
