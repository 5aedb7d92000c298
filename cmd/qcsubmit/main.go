// qcsubmit queues a slice of structure folders on an HPC scheduler.
//
// Folders under the root are addressed by their index in sorted order, so a
// large sweep can be pushed to the queue a slice at a time:
//
//	qcsubmit -n 16 -W 12:00:00 ./structures 0 50
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/config"
	"qcbatch/internal/submit"
)

func main() {
	cfg := config.LoadToolConfig()
	if cfg.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	if err := run(); err != nil {
		slog.Error("Submission failed", "error", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func run() error {
	submitCfg := submit.LoadConfigFromEnv()

	var (
		cores    = flag.Int("n", submitCfg.Cores, "cores to request per job")
		walltime = flag.String("W", submitCfg.Walltime, "walltime limit, empty for the queue default")
		dryRun   = flag.Bool("d", false, "log what would be submitted without calling the scheduler")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <root> <lower> <upper>\n\nSubmits the folders with sorted index in [lower, upper).\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 3 {
		flag.Usage()
		return apperrors.Validation("args", "root folder and index bounds are required")
	}
	root := flag.Arg(0)
	lower, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return apperrors.Validation("lower", "not an integer: "+flag.Arg(1))
	}
	upper, err := strconv.Atoi(flag.Arg(2))
	if err != nil {
		return apperrors.Validation("upper", "not an integer: "+flag.Arg(2))
	}

	submitCfg.Cores = *cores
	submitCfg.Walltime = *walltime
	submitCfg.DryRun = *dryRun

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := submit.New(submitCfg, nil)
	summary, err := s.SubmitRange(ctx, root, lower, upper)

	slog.Info("Submission finished",
		"submitted", summary.Submitted,
		"missing", summary.Missing,
		"failed", summary.Failed,
	)
	return err
}
