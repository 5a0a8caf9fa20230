package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a decimal value.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypeList is a comma-separated list of values.
	TypeList OptionType = "list"
)

// Well-known option keys.
const (
	KeyResultsDir    = "results-dir"
	KeyModelRegistry = "model-registry"
	KeyInstances     = "instances"
	KeyScriptTimeout = "script.timeout"
	KeyLogFile       = "log.file"
	KeyLogLevel      = "log.level"
	KeyLogFormat     = "log.format"
	KeyLogMaxSizeMB  = "log.max-size-mb"
	KeyLogMaxFiles   = "log.max-files"

	SectionRun     = "run"
	KeyTemperature = "temperature"
	KeyMaxTokens   = "max-tokens"
	KeyExperiments = "experiments"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	// See Environment.
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	// byKey indexes global options by key for fast lookup.
	byKey map[string]*ConfigOption
	// bySection indexes section options by section then key.
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys within the same
// section are silently overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Options returns every registered option in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, len(s.options))
	for i, o := range s.options {
		out[i] = *o
	}
	return out
}

// Lookup returns the ConfigOption for a key in a given section ("" for global).
// Returns nil if the key is not registered.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// IsKnown returns true if the key is registered in the given section.
// Global keys are known in every section.
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section == "" {
		return s.byKey[key] != nil
	}
	if sec, ok := s.bySection[section]; ok {
		if sec[key] != nil {
			return true
		}
	}
	return s.byKey[key] != nil
}

// SectionOptions returns all registered options for a specific section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns a sorted list of all registered non-empty section names.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value for key in section ("" for global):
// the configured value, else the schema default. Environment overrides are
// merged into the config beforehand by ApplyEnvironment.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	var (
		v  string
		ok bool
	)
	if section == "" {
		v, ok = c.GetGlobalOption(key)
	} else {
		v, ok = c.GetSectionOption(section, key)
	}
	if ok {
		return v
	}
	opt := s.Lookup(section, key)
	if opt == nil && section != "" {
		opt = s.Lookup("", key)
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid).
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	for section, opts := range c.Sections {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option in [%s]: %q (value: %q)", section, key, value))
				continue
			}
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if err := validateType(opt.Type, value); err != nil {
				issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
			}
		}
	}

	sort.Strings(issues)
	return issues
}

func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, TypeList, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// --- Typed getters, resolved through DefaultSchema ---

// GetString returns the effective value of a global option.
func (c *Config) GetString(key string) string {
	return DefaultSchema().Resolve(c, "", key)
}

// GetBool returns the effective value of a global option as a bool, or false
// if it cannot be parsed.
func (c *Config) GetBool(key string) bool {
	b, err := parseBool(c.GetString(key))
	return err == nil && b
}

// GetInt returns the effective value of a global option as an int, or 0 if
// it cannot be parsed.
func (c *Config) GetInt(key string) int {
	i, err := strconv.Atoi(c.GetString(key))
	if err != nil {
		return 0
	}
	return i
}

// GetDuration returns the effective value of a global option as a duration,
// or 0 if it cannot be parsed.
func (c *Config) GetDuration(key string) time.Duration {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0
	}
	return d
}

// GetSectionFloat returns the effective value of a section option as a
// float64, or 0 if it cannot be parsed.
func (c *Config) GetSectionFloat(section, key string) float64 {
	f, err := strconv.ParseFloat(DefaultSchema().Resolve(c, section, key), 64)
	if err != nil {
		return 0
	}
	return f
}

// GetSectionInt returns the effective value of a section option as an int,
// or 0 if it cannot be parsed.
func (c *Config) GetSectionInt(section, key string) int {
	i, err := strconv.Atoi(DefaultSchema().Resolve(c, section, key))
	if err != nil {
		return 0
	}
	return i
}

// GetSectionList returns the effective value of a section option split on
// commas, with blanks removed.
func (c *Config) GetSectionList(section, key string) []string {
	return SplitList(DefaultSchema().Resolve(c, section, key))
}

// SplitList splits a comma-separated value, trimming and dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	if globals := s.SectionOptions(""); len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}

	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] Options:\n", sec)
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}

	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-25s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

// DefaultSchema returns the schema of every known option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: KeyResultsDir, Type: TypeString, Default: "results", Description: "Root directory for run results", EnvVar: "TURNBENCH_RESULTS_DIR"},
		{Key: KeyModelRegistry, Type: TypeString, Default: "model_registry.json", Description: "JSON file of known model specs", EnvVar: "TURNBENCH_MODEL_REGISTRY"},
		{Key: KeyInstances, Type: TypeString, Default: "", Description: "Instances file; empty uses the game's generated instances", EnvVar: "TURNBENCH_INSTANCES"},
		{Key: KeyScriptTimeout, Type: TypeDuration, Default: "5s", Description: "Time limit for one script backend call"},

		{Key: KeyLogFile, Type: TypeString, Default: "", Description: "Log file path (JSON output, rotated)", EnvVar: "TURNBENCH_LOG_FILE"},
		{Key: KeyLogLevel, Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "TURNBENCH_LOG_LEVEL"},
		{Key: KeyLogFormat, Type: TypeString, Default: "text", Description: "Console log format: text, json", EnvVar: "TURNBENCH_LOG_FORMAT"},
		{Key: KeyLogMaxSizeMB, Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: KeyLogMaxFiles, Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},

		{Key: KeyTemperature, Section: SectionRun, Type: TypeFloat, Default: "0", Description: "Sampling temperature for all players"},
		{Key: KeyMaxTokens, Section: SectionRun, Type: TypeInt, Default: "100", Description: "Response length cap for all players"},
		{Key: KeyExperiments, Section: SectionRun, Type: TypeList, Default: "", Description: "Only run these experiments"},
	})
	return s
}
