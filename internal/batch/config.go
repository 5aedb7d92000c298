package batch

import (
	"runtime"

	"qcbatch/internal/config"
)

// LoadOptionsFromEnv loads batch options from environment variables.
// Flags on the command line take precedence over these values.
func LoadOptionsFromEnv() Options {
	return Options{
		Workers: config.GetIntEnv("QCBATCH_WORKERS", 0),
	}.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Engine == "" {
		o.Engine = "unknown"
	}
	return o
}
