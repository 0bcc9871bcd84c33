package job

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ContainerRunner abstracts container start/log/wait/terminate so the
// Supervisor can be exercised in tests with a fake, and so the production
// wiring is the only place that imports testcontainers-go directly.
type ContainerRunner interface {
	Run(ctx context.Context, req ContainerRequest) (ContainerHandle, error)
}

// ContainerRequest describes one synthesis container invocation.
type ContainerRequest struct {
	Image      string
	Cmd        []string
	BindMounts map[string]string // host path -> container path
	WorkingDir string
}

// ContainerHandle is a running (or just-finished) container.
type ContainerHandle interface {
	Logs(ctx context.Context) (io.ReadCloser, error)
	Wait(ctx context.Context) (exitCode int, err error)
	Terminate(ctx context.Context) error
}

// testcontainersRunner is the production ContainerRunner, backed by
// github.com/testcontainers/testcontainers-go (sourced from the
// goadesign-goa-ai retrieval-pack repo; see DESIGN.md).
type testcontainersRunner struct{}

// NewContainerRunner returns the production testcontainers-go-backed runner.
func NewContainerRunner() ContainerRunner { return &testcontainersRunner{} }

func (testcontainersRunner) Run(ctx context.Context, req ContainerRequest) (ContainerHandle, error) {
	mounts := make(testcontainers.ContainerMounts, 0, len(req.BindMounts))
	for host, container := range req.BindMounts {
		mounts = append(mounts, testcontainers.ContainerMount{
			Source: testcontainers.GenericBindMountSource{HostPath: host},
			Target: testcontainers.ContainerMountTarget(container),
		})
	}

	creq := testcontainers.ContainerRequest{
		Image:      req.Image,
		Cmd:        req.Cmd,
		Mounts:     mounts,
		WaitingFor: wait.ForExit(),
	}
	if req.WorkingDir != "" {
		creq.Entrypoint = []string{"sh", "-c", fmt.Sprintf("cd %s && exec \"$@\"", req.WorkingDir)}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: creq,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start synthesis container %s: %w", req.Image, err)
	}
	return &containerHandle{c: c}, nil
}

type containerHandle struct {
	c testcontainers.Container
}

func (h *containerHandle) Logs(ctx context.Context) (io.ReadCloser, error) {
	return h.c.Logs(ctx)
}

func (h *containerHandle) Wait(ctx context.Context) (int, error) {
	state, err := h.c.State(ctx)
	if err != nil {
		return -1, err
	}
	for state.Running {
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		state, err = h.c.State(ctx)
		if err != nil {
			return -1, err
		}
	}
	return state.ExitCode, nil
}

func (h *containerHandle) Terminate(ctx context.Context) error {
	return h.c.Terminate(ctx)
}
