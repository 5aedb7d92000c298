// Package runner executes an external simulation engine inside a job folder.
package runner

import (
	"context"
	"os"
	"path/filepath"

	"qcbatch/internal/batch"
)

// Runner runs one engine invocation in a job folder.
//
// Implementations own every OS resource of an invocation (spawned process,
// redirected output) for its duration and must release them before the next
// call. Cancelling the context must terminate the external process rather
// than leaving it running detached.
type Runner interface {
	// Run executes the engine in dir, blocking until it exits.
	// A non-zero engine exit is an error.
	Run(ctx context.Context, dir string) error

	// Ready checks that the engine can be invoked at all
	// (binary on PATH, container daemon reachable).
	Ready(ctx context.Context) error

	// Close releases resources held by the runner.
	Close() error
}

// Engine describes an external quantum-chemistry code.
type Engine struct {
	Name     string   // label used in logs and metrics
	Command  string   // executable name
	Args     []string // fixed arguments
	LogFile  string   // combined output file written into the job folder
	Sentinel string   // glob naming the output whose presence means "done"
}

// Built-in engine presets. The sentinel is the file each code writes on a
// completed run; its contents are deliberately not inspected (see Done).
var (
	DFTB = Engine{
		Name:     "dftb+",
		Command:  "dftb+",
		LogFile:  "dftb+.log",
		Sentinel: "geo_end.xyz",
	}
	CASTEP = Engine{
		Name:     "castep",
		Command:  "castep",
		LogFile:  "castep.log",
		Sentinel: "*-out.cell",
	}
)

// Engines maps engine names to their presets.
var Engines = map[string]Engine{
	DFTB.Name:   DFTB,
	CASTEP.Name: CASTEP,
}

// Done reports whether dir contains a file matching the sentinel pattern.
//
// Presence is the sole completion signal: a file truncated by a crash
// mid-write is indistinguishable from a complete one. An atomic
// write-then-rename completion marker would close that gap, but the engines
// write the sentinel themselves, so the convention stands.
func Done(dir, sentinel string) bool {
	matches, err := filepath.Glob(filepath.Join(dir, sentinel))
	if err != nil {
		return false
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Step builds the batch work function for an engine: when resume is on and
// the sentinel already exists in the job folder, the job is skipped without
// side effects; otherwise the engine runs in that folder.
func Step(r Runner, engine Engine, resume bool) batch.WorkFunc {
	return func(ctx context.Context, job batch.Job) error {
		if resume && Done(string(job), engine.Sentinel) {
			return batch.ErrSkipped
		}
		return r.Run(ctx, string(job))
	}
}
