// Package config holds the YAML-driven configuration tree for the Sys2DSL
// reasoning engine: HDC strategy selection, resource ceilings, logging, and
// storage adapter settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all engine configuration.
type Config struct {
	// Name/Version identify the engine build, mirrored into dump() output.
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`

	// HDC strategy selection (§4.1): which vector strategy backs the
	// Vocabulary and KnowledgeBase for this session.
	HDC HDCConfig `yaml:"hdc" json:"hdc"`

	// AutoLoadCore preloads the bundled "Core" ontology/theory pack on
	// session start (§4.9).
	AutoLoadCore bool `yaml:"auto_load_core" json:"auto_load_core"`

	// DebugTrace enables per-step search traces on proof/query results (§7).
	DebugTrace bool `yaml:"debug_trace" json:"debug_trace"`

	// ReasoningPriority selects which engine runs first when both a
	// symbolic and HDC-priority path could answer a request: "symbolic"
	// or "hdc". Defaults to "symbolic" per §4.
	ReasoningPriority string `yaml:"reasoning_priority" json:"reasoning_priority"`

	// Limits enforces the budgets from spec §5.
	Limits ResourceLimits `yaml:"limits" json:"limits"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Storage configures the persistence adapter (§6).
	Storage StorageConfig `yaml:"storage" json:"storage"`
}

// HDCConfig selects and parameterizes the hyperdimensional vector strategy.
type HDCConfig struct {
	Strategy  string `yaml:"strategy" json:"strategy"`   // dense-binary, sparse-polynomial, metric-affine, exact
	Dimension int    `yaml:"dimension" json:"dimension"` // strategy-dependent geometry (bits, terms, components)
	Seed      int64  `yaml:"seed" json:"seed"`           // deterministic atom-vector generation
}

// StorageConfig configures the pluggable byte-stable storage adapter (§6).
type StorageConfig struct {
	Driver        string `yaml:"driver" json:"driver"` // sqlite3, sqlite (modernc), memory
	Path          string `yaml:"path" json:"path"`
	VectorIndex   bool   `yaml:"vector_index" json:"vector_index"` // not read by the engine; reverse_lookup always scans the vocabulary
	TheoryPackDir string `yaml:"theory_pack_dir" json:"theory_pack_dir"`
	WatchReload   bool   `yaml:"watch_reload" json:"watch_reload"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "sys2dsl",
		Version: "0.1.0",

		HDC: HDCConfig{
			Strategy:  "dense-binary",
			Dimension: 32768,
			Seed:      1,
		},

		AutoLoadCore:      true,
		DebugTrace:        false,
		ReasoningPriority: "symbolic",

		Limits: DefaultResourceLimits(),

		Logging: DefaultLoggingConfig(),

		Storage: StorageConfig{
			Driver:        "memory",
			Path:          "data/sys2dsl.db",
			VectorIndex:   false,
			TheoryPackDir: "",
			WatchReload:   false,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if the
// file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies the stable environment variable names from §6.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("HDC_STRATEGY"); v != "" {
		c.HDC.Strategy = v
	}
	if v := os.Getenv("AUTO_LOAD_CORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AutoLoadCore = b
		}
	}
	if v := os.Getenv("DEBUG_TRACE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.DebugTrace = b
		}
	}
	if v := os.Getenv("REASONING_PRIORITY"); v != "" {
		c.ReasoningPriority = v
	}
}

// ProofTimeout returns the proof-search timeout as a duration.
func (c *Config) ProofTimeout() time.Duration {
	return time.Duration(c.Limits.ProofTimeoutMs) * time.Millisecond
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.HDC.Strategy {
	case "dense-binary", "sparse-polynomial", "metric-affine", "exact":
	default:
		return fmt.Errorf("unknown hdc strategy %q", c.HDC.Strategy)
	}
	if c.HDC.Dimension < 1 {
		return fmt.Errorf("hdc.dimension must be >= 1")
	}
	switch c.ReasoningPriority {
	case "symbolic", "hdc":
	default:
		return fmt.Errorf("reasoning_priority must be \"symbolic\" or \"hdc\", got %q", c.ReasoningPriority)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	return nil
}
