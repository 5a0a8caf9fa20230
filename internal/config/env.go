package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Environment holds the environment variable overrides. An empty value means
// the variable is unset.
type Environment struct {
	ResultsDir    string `env:"TURNBENCH_RESULTS_DIR"`
	ModelRegistry string `env:"TURNBENCH_MODEL_REGISTRY"`
	Instances     string `env:"TURNBENCH_INSTANCES"`
	LogFile       string `env:"TURNBENCH_LOG_FILE"`
	LogLevel      string `env:"TURNBENCH_LOG_LEVEL"`
	LogFormat     string `env:"TURNBENCH_LOG_FORMAT"`
}

// LoadEnvironment reads overrides from the process environment.
func LoadEnvironment() (Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return Environment{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// LoadEnvironmentFrom reads overrides from vars instead of the process
// environment.
func LoadEnvironmentFrom(vars map[string]string) (Environment, error) {
	var e Environment
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Environment{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// overrides maps option keys to the values set in e.
func (e Environment) overrides() map[string]string {
	out := make(map[string]string)
	for key, v := range map[string]string{
		KeyResultsDir:    e.ResultsDir,
		KeyModelRegistry: e.ModelRegistry,
		KeyInstances:     e.Instances,
		KeyLogFile:       e.LogFile,
		KeyLogLevel:      e.LogLevel,
		KeyLogFormat:     e.LogFormat,
	} {
		if v != "" {
			out[key] = v
		}
	}
	return out
}

// ApplyEnvironment sets every override in e as a global option of c, so that
// the environment beats the config file.
func (c *Config) ApplyEnvironment(e Environment) {
	for key, v := range e.overrides() {
		c.SetGlobalOption(key, v)
	}
}
