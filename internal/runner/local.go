package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"qcbatch/internal/apperrors"
)

// Local runs the engine binary directly on the host.
//
// The engine runs with the job folder as its working directory (set on the
// command, never via a process-wide chdir) and its combined output
// redirected to the engine's log file inside that folder.
type Local struct {
	engine Engine
	logger *slog.Logger
}

// NewLocal creates a runner for an engine binary on the host.
func NewLocal(engine Engine) *Local {
	return &Local{
		engine: engine,
		logger: slog.With("component", "runner", "engine", engine.Name),
	}
}

// Run executes the engine in dir and waits for it to exit.
func (l *Local) Run(ctx context.Context, dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return apperrors.NotFound("job folder", dir)
	}

	logPath := filepath.Join(dir, l.engine.LogFile)
	logFile, err := os.Create(logPath)
	if err != nil {
		return apperrors.Internal("runner.createLog", err)
	}
	defer logFile.Close()

	cmd := exec.CommandContext(ctx, l.engine.Command, l.engine.Args...)
	cmd.Dir = dir
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	// The engine may spawn helpers (MPI launchers and the like); put the
	// invocation in its own process group so cancellation kills all of them,
	// not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	l.logger.Debug("Running engine", "dir", dir)
	start := time.Now()
	err = cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", l.engine.Name, ctx.Err())
		}
		return fmt.Errorf("%s in %s: %w", l.engine.Name, dir, err)
	}

	l.logger.Debug("Engine finished", "dir", dir, "duration", time.Since(start))
	return nil
}

// Ready checks that the engine binary is on PATH.
func (l *Local) Ready(ctx context.Context) error {
	if _, err := exec.LookPath(l.engine.Command); err != nil {
		return fmt.Errorf("engine %s not runnable: %w", l.engine.Name, err)
	}
	return nil
}

// Close releases resources. The local runner holds none between runs.
func (l *Local) Close() error {
	return nil
}

// Verify Local implements Runner
var _ Runner = (*Local)(nil)
