package submit

import (
	"qcbatch/internal/config"
	"qcbatch/pkg/backoff"
	"qcbatch/pkg/circuitbreaker"
)

// Config holds configuration for the submitter.
type Config struct {
	Command  string // scheduler submission command (default: castepsub)
	Cores    int    // cores requested per job (default: 4)
	Walltime string // scheduler walltime limit, empty for the queue default
	DryRun   bool   // log what would be submitted without running anything
	Attempts int    // tries per folder before counting it failed (default: 3)
	Backoff  backoff.Config
	Breaker  circuitbreaker.Config
}

// LoadConfigFromEnv loads submitter configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Command:  config.GetEnv("QCBATCH_SUBMIT_COMMAND", "castepsub"),
		Cores:    config.GetIntEnv("QCBATCH_SUBMIT_CORES", 4),
		Walltime: config.GetEnv("QCBATCH_SUBMIT_WALLTIME", ""),
		Attempts: config.GetIntEnv("QCBATCH_SUBMIT_ATTEMPTS", 3),
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Command == "" {
		c.Command = "castepsub"
	}
	if c.Cores <= 0 {
		c.Cores = 4
	}
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	return c
}
