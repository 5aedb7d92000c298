// Package submit queues structure folders on an HPC scheduler.
//
// Each structure folder is expected to hold a <folder>.cell seed file; the
// scheduler command (castepsub by default) is invoked inside the folder with
// the seed name as its final argument. Folders are addressed by their index
// in sorted order so a large sweep can be submitted in slices.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/scan"
	"qcbatch/pkg/backoff"
	"qcbatch/pkg/circuitbreaker"
)

// CommandFunc executes a scheduler command inside dir. Tests inject a stub.
type CommandFunc func(ctx context.Context, dir string, name string, args []string) error

// Summary reports what a SubmitRange call did.
type Summary struct {
	Submitted int
	Missing   int // folders without a seed .cell file
	Failed    int // submissions that failed after retries
}

// Submitter submits structure folders to the scheduler.
type Submitter struct {
	config  Config
	run     CommandFunc
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
}

// New creates a Submitter. A nil run uses the real scheduler command.
func New(config Config, run CommandFunc) *Submitter {
	config = config.withDefaults()
	if run == nil {
		run = execCommand
	}
	return &Submitter{
		config:  config,
		run:     run,
		breaker: circuitbreaker.New(config.Breaker),
		logger:  slog.With("component", "submit", "command", config.Command),
	}
}

// SubmitRange submits the folders with sorted index in [lower, upper).
// Folders without a seed file are skipped, and a failed submission does not
// stop the rest of the slice. Only a scheduler that keeps failing trips the
// circuit breaker and aborts the run.
func (s *Submitter) SubmitRange(ctx context.Context, root string, lower, upper int) (Summary, error) {
	var summary Summary

	folders, err := scan.Folders(root)
	if err != nil {
		return summary, err
	}

	if lower < 0 {
		return summary, apperrors.Validation("lower", "lower bound must be >= 0")
	}
	if upper > len(folders) {
		return summary, apperrors.Validation("upper", fmt.Sprintf("upper bound %d exceeds folder count %d", upper, len(folders)))
	}
	if lower >= upper {
		return summary, apperrors.Validation("bounds", fmt.Sprintf("empty range [%d, %d)", lower, upper))
	}

	for _, dir := range folders[lower:upper] {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		seed := filepath.Base(dir)
		if _, err := os.Stat(filepath.Join(dir, seed+".cell")); err != nil {
			s.logger.Warn("No seed file, skipping folder", "folder", seed)
			summary.Missing++
			continue
		}

		if !s.breaker.Allow() {
			return summary, apperrors.Internal("submit.scheduler",
				fmt.Errorf("scheduler circuit %s after %d consecutive failures", s.breaker.State(), s.breaker.Failures()))
		}

		if err := s.submit(ctx, dir, seed); err != nil {
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			s.breaker.RecordFailure()
			summary.Failed++
			s.logger.Warn("Submission failed", "folder", seed, "error", err)
			continue
		}

		s.breaker.RecordSuccess()
		summary.Submitted++
		s.logger.Info("Submitted", "folder", dir, "seed", seed)
	}

	return summary, nil
}

func (s *Submitter) submit(ctx context.Context, dir, seed string) error {
	args := []string{"-n", strconv.Itoa(s.config.Cores)}
	if s.config.Walltime != "" {
		args = append(args, "-W", s.config.Walltime)
	}
	args = append(args, seed)

	if s.config.DryRun {
		s.logger.Info("Dry run", "dir", dir, "args", args)
		return nil
	}

	return backoff.Retry(ctx, s.config.Attempts, &s.config.Backoff, func() error {
		return s.run(ctx, dir, s.config.Command, args)
	})
}

func execCommand(ctx context.Context, dir, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
	}
	return nil
}
