package config

import "fmt"

// ResourceLimits enforces the budgets from spec §5 ("Resource ceilings").
type ResourceLimits struct {
	MaxDepth         int `yaml:"max_depth" json:"max_depth"`
	ProofTimeoutMs   int `yaml:"proof_timeout_ms" json:"proof_timeout_ms"`
	MaxReasoningStep int `yaml:"max_reasoning_steps" json:"max_reasoning_steps"`
	MaxHolesPerQuery int `yaml:"max_holes_per_query" json:"max_holes_per_query"`
	MaxNestingDepth  int `yaml:"max_nesting_depth" json:"max_nesting_depth"`
	MaxPositions     int `yaml:"max_positions" json:"max_positions"`
	MetricValueMin   int `yaml:"metric_value_min" json:"metric_value_min"`
	MetricValueMax   int `yaml:"metric_value_max" json:"metric_value_max"`
	VocabularyLimit  int `yaml:"vocabulary_limit" json:"vocabulary_limit"`
	KBFactLimit      int `yaml:"kb_fact_limit" json:"kb_fact_limit"`
}

// DefaultResourceLimits returns the spec's stated defaults.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxDepth:         200,
		ProofTimeoutMs:   5000,
		MaxReasoningStep: 1000,
		MaxHolesPerQuery: 3,
		MaxNestingDepth:  3,
		MaxPositions:     20,
		MetricValueMin:   -127,
		MetricValueMax:   127,
		VocabularyLimit:  0, // 0 = unbounded
		KBFactLimit:      0,
	}
}

// Validate checks limits are within sane, non-degenerate ranges.
func (r ResourceLimits) Validate() error {
	if r.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be >= 1")
	}
	if r.ProofTimeoutMs < 1 {
		return fmt.Errorf("proof_timeout_ms must be >= 1")
	}
	if r.MaxReasoningStep < 1 {
		return fmt.Errorf("max_reasoning_steps must be >= 1")
	}
	if r.MaxPositions < 1 || r.MaxPositions > 64 {
		return fmt.Errorf("max_positions must be in [1,64]")
	}
	if r.MetricValueMin >= r.MetricValueMax {
		return fmt.Errorf("metric_value_min must be < metric_value_max")
	}
	return nil
}
