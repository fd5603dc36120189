package env

import (
	"fmt"
	"os"
	"strings"
)

// PropertyEnvPrefix marks process variables that become run properties
const PropertyEnvPrefix = "SUITERUN_PROP_"

// ParseProperties turns key=value pairs from -D flags into a map
func ParseProperties(pairs []string) (map[string]string, error) {
	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid property %q, expected key=value", pair)
		}
		result[key] = value
	}
	return result, nil
}

// MergeProperties layers sources left to right, later sources win
func MergeProperties(sources ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns process variables starting with prefix, prefix removed.
// An empty prefix returns the whole environment.
func LoadSystemEnv(prefix string) map[string]string {
	result := make(map[string]string)
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found {
			continue
		}
		if prefix == "" {
			result[key] = value
		} else if len(key) > len(prefix) && strings.HasPrefix(key, prefix) {
			result[key[len(prefix):]] = value
		}
	}
	return result
}
