// Package config provides configuration loading from environment variables.
package config

// ToolConfig holds configuration shared by the qcbatch command line tools.
type ToolConfig struct {
	MetricsPort string // empty disables the metrics endpoint
	LogFormat   string // "text" or "json"
}

// LoadToolConfig loads shared tool configuration from environment variables.
func LoadToolConfig() *ToolConfig {
	return &ToolConfig{
		MetricsPort: GetEnv("QCBATCH_METRICS_PORT", ""),
		LogFormat:   GetEnv("QCBATCH_LOG_FORMAT", "text"),
	}
}
