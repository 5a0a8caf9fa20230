package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestNewSchema(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	if len(s.Options()) != 0 {
		t.Fatalf("expected empty options, got %d", len(s.Options()))
	}
}

func TestSchemaLookup(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "color", Type: TypeString, Default: "auto"},
		{Key: "pager", Type: TypeString, Section: "help"},
	})

	if opt := s.Lookup("", "color"); opt == nil || opt.Default != "auto" {
		t.Fatalf("unexpected Lookup result: %+v", opt)
	}
	if opt := s.Lookup("help", "pager"); opt == nil || opt.Key != "pager" {
		t.Fatalf("unexpected Lookup result for help.pager: %+v", opt)
	}
	if opt := s.Lookup("", "pager"); opt != nil {
		t.Fatalf("section option leaked into globals: %+v", opt)
	}
	if opt := s.Lookup("nosection", "nokey"); opt != nil {
		t.Fatalf("expected nil, got %+v", opt)
	}

	// Globals are valid in any section.
	if !s.IsKnown("help", "color") {
		t.Error("expected global 'color' to be known in [help]")
	}
	if s.IsKnown("", "pager") {
		t.Error("expected 'pager' to be unknown globally")
	}
}

func TestSchemaSections(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.RegisterAll([]ConfigOption{
		{Key: "a", Section: "zeta"},
		{Key: "b", Section: "alpha"},
		{Key: "c"},
	})
	if got, want := s.Sections(), []string{"alpha", "zeta"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := s.SectionOptions(""); len(got) != 1 || got[0].Key != "c" {
		t.Errorf("unexpected globals: %+v", got)
	}
}

func TestOptionsReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewSchema()
	s.Register(ConfigOption{Key: "k", Default: "v"})
	opts := s.Options()
	opts[0].Default = "changed"
	if s.Lookup("", "k").Default != "v" {
		t.Error("Options must not expose internal state")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name    string
		content string
		issues  []string
	}{
		{name: "empty"},
		{
			name:    "all valid",
			content: "results-dir out\nscript.timeout 3s\nlog.max-files 2\n[run]\ntemperature 0.5\nmax-tokens 20\nexperiments a,b\n",
		},
		{
			name:    "unknown global",
			content: "bogus 1\n",
			issues:  []string{`unknown global option: "bogus"`},
		},
		{
			name:    "unknown section option",
			content: "[run]\nbogus 1\n",
			issues:  []string{`unknown option in [run]: "bogus"`},
		},
		{
			name:    "type mismatches",
			content: "log.max-files many\nscript.timeout soon\n[run]\ntemperature hot\n",
			issues: []string{
				`global option "log.max-files": expected int`,
				`global option "script.timeout": expected duration`,
				`option "temperature" in [run]: expected float`,
			},
		},
		{
			name:    "global in section is type checked",
			content: "[run]\nlog.max-size-mb big\n",
			issues:  []string{`option "log.max-size-mb" in [run]: expected int`},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadFromReader(strings.NewReader(tc.content))
			if err != nil {
				t.Fatal(err)
			}
			issues := ValidateConfig(cfg, DefaultSchema())
			if len(issues) != len(tc.issues) {
				t.Fatalf("expected %d issues, got %d: %v", len(tc.issues), len(issues), issues)
			}
			for i, want := range tc.issues {
				if !strings.Contains(issues[i], want) {
					t.Errorf("issue %d: expected %q in %q", i, want, issues[i])
				}
			}
			if !reflect.DeepEqual(cfg.Warnings, issues) && len(issues) > 0 {
				t.Errorf("expected load warnings %v to match %v", cfg.Warnings, issues)
			}
		})
	}
}

func TestValidateType(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		typ   OptionType
		value string
		ok    bool
	}{
		{TypeString, "anything", true},
		{TypeList, "a,,b", true},
		{TypeBool, "yes", true},
		{TypeBool, "sure", false},
		{TypeInt, "42", true},
		{TypeInt, "4.2", false},
		{TypeFloat, "4.2", true},
		{TypeFloat, "x", false},
		{TypeDuration, "1m30s", true},
		{TypeDuration, "90", false},
		{OptionType("weird"), "x", false},
	} {
		if err := validateType(tc.typ, tc.value); (err == nil) != tc.ok {
			t.Errorf("validateType(%s, %q) = %v, want ok=%v", tc.typ, tc.value, err, tc.ok)
		}
	}
}

func TestSchemaResolve(t *testing.T) {
	t.Parallel()
	s := DefaultSchema()
	cfg := NewConfig()

	if got := s.Resolve(cfg, "", KeyResultsDir); got != "results" {
		t.Errorf("expected default, got %q", got)
	}
	if got := s.Resolve(cfg, SectionRun, KeyMaxTokens); got != "100" {
		t.Errorf("expected section default, got %q", got)
	}
	// Global default reached through a section.
	if got := s.Resolve(cfg, SectionRun, KeyLogLevel); got != "info" {
		t.Errorf("expected global default via section, got %q", got)
	}

	cfg.SetGlobalOption(KeyResultsDir, "out")
	cfg.SetSectionOption(SectionRun, KeyMaxTokens, "7")
	if got := s.Resolve(cfg, "", KeyResultsDir); got != "out" {
		t.Errorf("expected configured value, got %q", got)
	}
	if got := s.Resolve(cfg, SectionRun, KeyMaxTokens); got != "7" {
		t.Errorf("expected configured section value, got %q", got)
	}
	if got := s.Resolve(cfg, "", "unknown"); got != "" {
		t.Errorf("expected empty for unknown key, got %q", got)
	}
}

func TestTypedGetters(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromReader(strings.NewReader(`script.timeout 250ms
log.max-files 3
[run]
temperature 0.9
experiments one, two ,,three
`))
	if err != nil {
		t.Fatal(err)
	}

	if got := cfg.GetDuration(KeyScriptTimeout); got != 250*time.Millisecond {
		t.Errorf("GetDuration: got %v", got)
	}
	if got := cfg.GetInt(KeyLogMaxFiles); got != 3 {
		t.Errorf("GetInt: got %d", got)
	}
	if got := cfg.GetInt(KeyLogMaxSizeMB); got != 10 {
		t.Errorf("GetInt default: got %d", got)
	}
	if got := cfg.GetSectionFloat(SectionRun, KeyTemperature); got != 0.9 {
		t.Errorf("GetSectionFloat: got %v", got)
	}
	if got := cfg.GetSectionInt(SectionRun, KeyMaxTokens); got != 100 {
		t.Errorf("GetSectionInt default: got %d", got)
	}
	if got, want := cfg.GetSectionList(SectionRun, KeyExperiments), []string{"one", "two", "three"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetSectionList: got %v", got)
	}
	if got := cfg.GetBool(KeyLogFile); got {
		t.Error("GetBool on a non-bool should be false")
	}

	cfg.SetGlobalOption(KeyLogMaxFiles, "bad")
	if got := cfg.GetInt(KeyLogMaxFiles); got != 0 {
		t.Errorf("expected 0 for unparsable int, got %d", got)
	}
}

func TestFormatHelp(t *testing.T) {
	t.Parallel()
	help := DefaultSchema().FormatHelp()
	for _, want := range []string{
		"Global Options:",
		"[run] Options:",
		"results-dir",
		"env: TURNBENCH_RESULTS_DIR",
		"type: duration, default: 5s",
	} {
		if !strings.Contains(help, want) {
			t.Errorf("expected %q in help:\n%s", want, help)
		}
	}
	if got := NewSchema().FormatHelp(); got != "" {
		t.Errorf("expected empty help, got %q", got)
	}
}
