package job

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/forgeline/forgeline/internal/apperr"
)

type fakeHandle struct {
	mu       sync.Mutex
	lines    []string
	exitCode int
	waitErr  error
	blockCh  chan struct{}
}

func (h *fakeHandle) Logs(ctx context.Context) (io.ReadCloser, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return io.NopCloser(bytes.NewBufferString(joinLines(h.lines))), nil
}

func (h *fakeHandle) Wait(ctx context.Context) (int, error) {
	if h.blockCh != nil {
		select {
		case <-h.blockCh:
		case <-ctx.Done():
			return -1, ctx.Err()
		}
	}
	return h.exitCode, h.waitErr
}

func (h *fakeHandle) Terminate(ctx context.Context) error { return nil }

func joinLines(lines []string) string {
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}

type fakeRunner struct {
	handle  *fakeHandle
	runErr  error
	lastReq ContainerRequest
}

func (r *fakeRunner) Run(ctx context.Context, req ContainerRequest) (ContainerHandle, error) {
	r.lastReq = req
	if r.runErr != nil {
		return nil, r.runErr
	}
	return r.handle, nil
}

func TestSupervisor_StartAndSucceed(t *testing.T) {
	runner := &fakeRunner{handle: &fakeHandle{
		lines:    []string{"Starting synthesis", "Synthesis complete", "WNS: -0.120 ns", "Total Power: 12.4 mW"},
		exitCode: 0,
	}}
	sup := NewSupervisor(runner, Config{Image: "eda/synth:latest"})

	runID, err := sup.Start(context.Background(), "sess-1", Params{TopModule: "top"}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	job, err := sup.Wait(context.Background(), runID, 2*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State != StateSucceeded {
		t.Fatalf("expected succeeded, got %s (err=%s)", job.State, job.Err)
	}

	ppa, err := sup.Metrics(runID)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if ppa.WNSns == nil || *ppa.WNSns != -0.120 {
		t.Fatalf("expected WNS -0.120, got %+v", ppa.WNSns)
	}
	if ppa.PowerMw == nil || *ppa.PowerMw != 12.4 {
		t.Fatalf("expected power 12.4, got %+v", ppa.PowerMw)
	}
}

func TestSupervisor_RejectsConcurrentJobForSameSession(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{handle: &fakeHandle{blockCh: block}}
	sup := NewSupervisor(runner, Config{Image: "eda/synth:latest"})

	_, err := sup.Start(context.Background(), "sess-1", Params{TopModule: "top"}, nil)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}

	_, err = sup.Start(context.Background(), "sess-1", Params{TopModule: "top"}, nil)
	if apperr.KindOf(err) != apperr.KindJobConflict {
		t.Fatalf("expected JobConflict, got %v", err)
	}
	close(block)
}

func TestSupervisor_FailureOnNonzeroExit(t *testing.T) {
	runner := &fakeRunner{handle: &fakeHandle{exitCode: 1}}
	sup := NewSupervisor(runner, Config{Image: "eda/synth:latest"})

	runID, err := sup.Start(context.Background(), "sess-2", Params{TopModule: "top"}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	job, err := sup.Wait(context.Background(), runID, 2*time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if job.State != StateFailed {
		t.Fatalf("expected failed, got %s", job.State)
	}
	if _, err := sup.Metrics(runID); apperr.KindOf(err) != apperr.KindJobFailed {
		t.Fatalf("expected JobFailed from Metrics on a failed job, got %v", err)
	}
}

func TestSupervisor_StatusReportsStuckPastThreshold(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	runner := &fakeRunner{handle: &fakeHandle{blockCh: block}}
	sup := NewSupervisor(runner, Config{Image: "eda/synth:latest", StuckThreshold: 10 * time.Millisecond})

	runID, err := sup.Start(context.Background(), "sess-3", Params{TopModule: "top"}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	status, err := sup.Status(runID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != StateStuck {
		t.Fatalf("expected stuck, got %s", status.State)
	}
}

func TestSupervisor_SearchLogs(t *testing.T) {
	runner := &fakeRunner{handle: &fakeHandle{
		lines:    []string{"Starting synthesis", "warning: unconnected port foo", "Synthesis complete"},
		exitCode: 0,
	}}
	sup := NewSupervisor(runner, Config{Image: "eda/synth:latest"})

	runID, err := sup.Start(context.Background(), "sess-4", Params{TopModule: "top"}, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := sup.Wait(context.Background(), runID, 2*time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	hits, err := sup.SearchLogs(runID, "unconnected")
	if err != nil {
		t.Fatalf("SearchLogs: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d: %v", len(hits), hits)
	}
}
