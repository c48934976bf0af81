package config

// LoggingConfig configures the zap-backed structured logger (internal/logging).
type LoggingConfig struct {
	Level string `yaml:"level" json:"level,omitempty"` // debug, info, warn, error
	Debug bool   `yaml:"debug" json:"debug,omitempty"`  // master debug toggle, forces level to debug
}

// DefaultLoggingConfig returns the default logging configuration (info level,
// debug off).
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info", Debug: false}
}
