// qcbatch runs a quantum-chemistry engine over every structure folder under
// a root, a fixed number at a time, and keeps going when individual jobs
// fail. With -resume, folders whose output sentinel already exists are
// skipped, so an interrupted sweep can be restarted without redoing work.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/batch"
	"qcbatch/internal/config"
	"qcbatch/internal/health"
	"qcbatch/internal/observability"
	"qcbatch/internal/runner"
	"qcbatch/internal/runner/docker"
	"qcbatch/internal/scan"
)

func main() {
	cfg := config.LoadToolConfig()
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	if err := run(cfg); err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run(cfg *config.ToolConfig) error {
	var (
		engineName  = flag.String("engine", runner.DFTB.Name, "engine to run (dftb+ or castep)")
		dockerImage = flag.String("docker-image", "", "run the engine from a container image instead of PATH")
		workers     = flag.Int("workers", 0, "concurrent jobs (default: number of CPU cores)")
		resume      = flag.Bool("resume", false, "skip folders whose output sentinel already exists")
		pattern     = flag.String("pattern", "", "treat every folder holding a file matching this glob as a job (default: immediate subfolders of root)")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <root>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return apperrors.Validation("root", "exactly one root folder is required")
	}
	root := flag.Arg(0)

	engine, ok := runner.Engines[*engineName]
	if !ok {
		return apperrors.Validation("engine", "unknown engine: "+*engineName)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var engineRunner runner.Runner
	if *dockerImage != "" {
		r, err := docker.New(ctx, docker.Config{Engine: engine, Image: *dockerImage})
		if err != nil {
			return err
		}
		engineRunner = r
	} else {
		engineRunner = runner.NewLocal(engine)
	}
	defer engineRunner.Close()

	checker := health.NewChecker()
	checker.Register("engine", engineRunner)
	checker.Register("root", health.CheckFunc(func(ctx context.Context) error {
		info, err := os.Stat(root)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a folder", root)
		}
		return nil
	}))
	if preflight := checker.Preflight(ctx); !preflight.IsHealthy() {
		for name, result := range preflight.Checks {
			if result.Status != health.StatusHealthy {
				slog.Error("Preflight check failed", "check", name, "message", result.Message)
			}
		}
		return apperrors.Validation("preflight", "preflight checks failed")
	}

	var folders []string
	var err error
	if *pattern != "" {
		folders, err = scan.FoldersContaining(root, *pattern)
	} else {
		folders, err = scan.Folders(root)
	}
	if err != nil {
		return err
	}

	jobs := make([]batch.Job, len(folders))
	for i, folder := range folders {
		jobs[i] = batch.Job(folder)
	}

	opts := batch.LoadOptionsFromEnv()
	if *workers > 0 {
		opts.Workers = *workers
	}
	opts.Engine = engine.Name

	if cfg.MetricsPort != "" {
		metrics, handler, err := observability.NewMetrics(ctx)
		if err != nil {
			return err
		}
		opts.Metrics = metrics
		startMetricsServer(cfg.MetricsPort, handler)
	}

	b, err := batch.New(runner.Step(engineRunner, engine, *resume), jobs, opts)
	if err != nil {
		return err
	}

	slog.Info("Starting batch",
		"root", root,
		"jobs", b.Len(),
		"workers", opts.Workers,
		"engine", engine.Name,
		"resume", *resume,
	)

	if err := b.Start(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := b.Close(closeCtx); err != nil {
			slog.Error("Batch teardown failed", "error", err)
		}
	}()

	var done, failed, skipped int
	for result := range b.Results() {
		done++
		switch {
		case result.Skipped:
			skipped++
		case result.Err != nil:
			// An individual job failing is expected (an SCC cycle that does
			// not converge, a bad geometry); the batch keeps going.
			failed++
		}
		fmt.Printf("\rdone %d of %d", done, b.Len())
	}
	fmt.Println()

	if ctx.Err() != nil {
		slog.Info("Batch interrupted", "completed", done, "of", b.Len())
		return ctx.Err()
	}

	slog.Info("Batch complete", "jobs", done, "failed", failed, "skipped", skipped)
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, done)
	}
	return nil
}

func startMetricsServer(port string, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting metrics server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("Metrics server failed", "error", err)
		}
	}()
}
