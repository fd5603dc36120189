package config

const (
	DefaultThreads   = 1
	DefaultTimeoutMs = 30000
	DefaultBuildDir  = "target"
	DefaultOutput    = "console"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Threads:         DefaultThreads,
		Timeout:         DefaultTimeoutMs,
		FollowRedirects: BoolPtr(true),
		ValidateSSL:     BoolPtr(true),
		BuildDir:        DefaultBuildDir,
		Output:          DefaultOutput,
		NoColor:         BoolPtr(false),
	}
}
