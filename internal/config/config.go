// Package config loads assertlens configuration from .assertlens.yaml.
// Every field has a working default; a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the workspace root.
const ConfigFileName = ".assertlens.yaml"

// Config holds all assertlens configuration.
type Config struct {
	// Assertion site recognition
	AssertFuncs []string `yaml:"assert_funcs"` // call-form assertion helpers, default ["assert"]
	FailCalls   []string `yaml:"fail_calls"`   // failure callees for the if-form, default ["panic"]

	// Diagnostic routine baked into instrumented code
	Report ReportConfig `yaml:"report"`

	// PreserveFailure keeps the original failure call after the diagnostic,
	// so instrumented assertions still abort. false reproduces the behavior
	// of replacing the failure branch entirely.
	PreserveFailure bool `yaml:"preserve_failure"`

	// RenderLimit bounds diagnostic templates in bytes. 0 uses the runtime
	// default.
	RenderLimit int `yaml:"render_limit"`

	// TypedBinding enables go/types resolution of leaf kinds. When the file
	// does not type-check against the standard importer, binding falls back
	// to literal heuristics either way.
	TypedBinding bool `yaml:"typed_binding"`

	// OutputSuffix names generated files when not rewriting in place.
	OutputSuffix string `yaml:"output_suffix"`

	// History store
	History HistoryConfig `yaml:"history"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ReportConfig identifies the diagnostic-printing routine referenced by
// generated code. Empty values select assertrt.Report.
type ReportConfig struct {
	Import string `yaml:"import"` // import path, e.g. "fmt"
	Func   string `yaml:"func"`   // printf-style function, e.g. "Printf"
}

// HistoryConfig configures the SQLite run-history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // default .assertlens/history.db
}

// LoggingConfig configures categorized debug logging.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		AssertFuncs:     []string{"assert"},
		FailCalls:       []string{"panic"},
		PreserveFailure: true,
		RenderLimit:     0,
		TypedBinding:    true,
		OutputSuffix:    "_instrumented",
		History: HistoryConfig{
			Enabled: false,
			Path:    filepath.Join(".assertlens", "history.db"),
		},
		Logging: LoggingConfig{Debug: false, Level: "info"},
	}
}

// Load reads the config file under workspace, applying defaults for any
// field left unset. A missing file yields Default().
func Load(workspace string) (*Config, error) {
	path := filepath.Join(workspace, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(cfg.AssertFuncs) == 0 {
		cfg.AssertFuncs = []string{"assert"}
	}
	if len(cfg.FailCalls) == 0 {
		cfg.FailCalls = []string{"panic"}
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filepath.Join(".assertlens", "history.db")
	}
	return cfg, nil
}
