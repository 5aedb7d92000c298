// Package docker implements the runner.Runner interface using the Docker API.
// It is used when an engine is distributed as a container image rather than
// a host binary: the job folder is bind-mounted into the container and the
// engine runs with it as working directory.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"qcbatch/internal/apperrors"
	"qcbatch/internal/runner"
)

const defaultWorkdir = "/job"

// Runner runs an engine image on the host Docker daemon.
type Runner struct {
	client  *client.Client
	engine  runner.Engine
	image   string
	workdir string
	logger  *slog.Logger
}

// Config holds configuration for the Docker runner.
type Config struct {
	Engine  runner.Engine
	Image   string // engine image, e.g. "dftbplus/dftbplus:latest"
	Workdir string // mount target inside the container (default /job)
}

// New creates a Docker runner.
func New(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.Image == "" {
		return nil, apperrors.Validation("image", "engine image is required")
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	return &Runner{
		client:  dockerClient,
		engine:  cfg.Engine,
		image:   cfg.Image,
		workdir: cfg.Workdir,
		logger:  slog.With("component", "runner", "engine", cfg.Engine.Name, "image", cfg.Image),
	}, nil
}

// Run executes the engine container over the job folder and waits for exit.
// On cancellation the container is force-removed so nothing keeps running
// detached after batch teardown.
func (r *Runner) Run(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return apperrors.Internal("docker.resolveDir", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return apperrors.NotFound("job folder", dir)
	}

	if err := r.pullImageIfNeeded(ctx); err != nil {
		return apperrors.Internal("docker.pullImage", err)
	}

	cmd := append([]string{r.engine.Command}, r.engine.Args...)
	containerConfig := &container.Config{
		Image:      r.image,
		Cmd:        cmd,
		WorkingDir: r.workdir,
		Labels: map[string]string{
			"managed-by":  "qcbatch",
			"qcbatch.dir": abs,
		},
	}
	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: abs,
				Target: r.workdir,
			},
		},
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return apperrors.Internal("docker.createContainer", err)
	}
	defer r.removeContainer(resp.ID)

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return apperrors.Internal("docker.startContainer", err)
	}

	r.logger.Debug("Engine container started", "dir", abs, "containerId", resp.ID)

	exitCode, err := r.waitForExit(ctx, resp.ID)
	if err != nil {
		return err
	}

	// The engine writes its outputs into the mounted folder itself; only the
	// console stream needs copying out, mirroring the local runner's log file.
	if err := r.writeLog(resp.ID, abs); err != nil {
		r.logger.Warn("Failed to save engine log", "dir", abs, "error", err)
	}

	if exitCode != 0 {
		return fmt.Errorf("%s in %s: exit code %d", r.engine.Name, dir, exitCode)
	}
	return nil
}

func (r *Runner) waitForExit(ctx context.Context, containerID string) (int, error) {
	statusCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		return -1, fmt.Errorf("%s cancelled: %w", r.engine.Name, ctx.Err())
	case err := <-errCh:
		return -1, apperrors.Internal("docker.wait", err)
	case status := <-statusCh:
		if status.Error != nil {
			return int(status.StatusCode), fmt.Errorf("%s", status.Error.Message)
		}
		return int(status.StatusCode), nil
	}
}

// writeLog copies the container's combined output into the engine log file
// in the job folder. Runs with a detached context so teardown still saves
// logs for completed containers.
func (r *Runner) writeLog(containerID, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logs, err := r.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return err
	}
	defer logs.Close()

	logFile, err := os.Create(filepath.Join(dir, r.engine.LogFile))
	if err != nil {
		return err
	}
	defer logFile.Close()

	_, err = stdcopy.StdCopy(logFile, logFile, logs)
	return err
}

func (r *Runner) pullImageIfNeeded(ctx context.Context) error {
	_, err := r.client.ImageInspect(ctx, r.image)
	if err == nil {
		return nil
	}

	r.logger.Info("Pulling engine image")
	reader, err := r.client.ImagePull(ctx, r.image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (r *Runner) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		r.logger.Warn("Failed to remove engine container", "containerId", containerID, "error", err)
	}
}

// Ready checks if the Docker daemon is reachable and responsive.
func (r *Runner) Ready(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	return err
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	return r.client.Close()
}

// Verify Runner implements runner.Runner
var _ runner.Runner = (*Runner)(nil)
