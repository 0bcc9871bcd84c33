package job

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeline/forgeline/internal/apperr"
)

// DefaultStages is the ordered list of stage-boundary strings the
// Supervisor matches against container stdout to detect progress. Stage
// naming follows the external flow's log conventions, so the list is a
// Supervisor field rather than a fixed constant, and callers may override
// it to match their deployment's synthesis flow.
var DefaultStages = []string{
	"Starting synthesis",
	"Elaborating design",
	"Technology mapping",
	"Placement",
	"Clock tree synthesis",
	"Routing",
	"Static timing analysis",
	"Generating reports",
	"Synthesis complete",
}

const defaultStuckThreshold = 5 * time.Minute
const defaultHardTimeout = 30 * time.Minute
const logTailSize = 200

// Supervisor drives long-running synthesis containers: start/status/wait/
// cancel/metrics, with at-most-one-non-terminal-job-per-session enforced
// by a session-keyed mutex.
type Supervisor struct {
	runner ContainerRunner
	image  string
	stages []string

	hardTimeout    time.Duration
	stuckThreshold time.Duration

	mu          sync.RWMutex
	jobs        map[string]*Job
	sessionJob  map[string]string // sessionID -> active (non-terminal) runID
	sessionLock sync.Map          // sessionID -> *sync.Mutex, serializes Start()

	cancel sync.Map // runID -> context.CancelFunc
}

// Config configures a new Supervisor.
type Config struct {
	Image          string
	Stages         []string // nil = DefaultStages
	HardTimeout    time.Duration
	StuckThreshold time.Duration
}

// NewSupervisor constructs a Supervisor backed by runner.
func NewSupervisor(runner ContainerRunner, cfg Config) *Supervisor {
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = defaultHardTimeout
	}
	if cfg.StuckThreshold <= 0 {
		cfg.StuckThreshold = defaultStuckThreshold
	}
	stages := cfg.Stages
	if stages == nil {
		stages = DefaultStages
	}
	return &Supervisor{
		runner:         runner,
		image:          cfg.Image,
		stages:         stages,
		hardTimeout:    cfg.HardTimeout,
		stuckThreshold: cfg.StuckThreshold,
		jobs:           make(map[string]*Job),
		sessionJob:     make(map[string]string),
	}
}

func (s *Supervisor) sessionMu(sessionID string) *sync.Mutex {
	l, _ := s.sessionLock.LoadOrStore(sessionID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Start begins an asynchronous synthesis job for sessionID. It fails with
// apperr.KindJobConflict if a non-terminal job already exists for this
// session, unless params.Override == "restart-stuck" and the existing job
// is stuck, in which case the prior worker is cancelled first.
func (s *Supervisor) Start(ctx context.Context, sessionID string, params Params, bindMounts map[string]string) (string, error) {
	mu := s.sessionMu(sessionID)
	mu.Lock()
	defer mu.Unlock()

	s.mu.Lock()
	existingID, hasExisting := s.sessionJob[sessionID]
	var existingState State
	if hasExisting {
		if existing := s.jobs[existingID]; existing != nil {
			existingState = existing.State
			// Stuck is derived at read time; a stuck job nobody polled is
			// still stored as running.
			if existingState == StateRunning && time.Since(existing.LastProgressAt) > s.stuckThreshold {
				existingState = StateStuck
				existing.State = StateStuck
			}
		}
	}
	s.mu.Unlock()

	if hasExisting && existingState != "" && !existingState.Terminal() {
		if params.Override != "restart-stuck" || existingState != StateStuck {
			return "", apperr.New(apperr.KindJobConflict, "session %q already has a non-terminal synthesis job (%s, state %s)", sessionID, existingID, existingState)
		}
		s.Cancel(existingID)
	}

	runID := uuid.NewString()
	job := &Job{
		RunID:          runID,
		SessionID:      sessionID,
		Image:          s.image,
		State:          StateQueued,
		StartedAt:      time.Now(),
		LastProgressAt: time.Now(),
	}

	s.mu.Lock()
	s.jobs[runID] = job
	s.sessionJob[sessionID] = runID
	s.mu.Unlock()

	workerCtx, cancel := context.WithTimeout(context.Background(), s.hardTimeout)
	s.cancel.Store(runID, cancel)

	go s.run(workerCtx, job, params, bindMounts)

	return runID, nil
}

func (s *Supervisor) run(ctx context.Context, job *Job, params Params, bindMounts map[string]string) {
	defer func() {
		if c, ok := s.cancel.Load(job.RunID); ok {
			c.(context.CancelFunc)()
			s.cancel.Delete(job.RunID)
		}
	}()

	s.setState(job.RunID, StateRunning, "")

	cmd := buildSynthesisCmd(params)
	handle, err := s.runner.Run(ctx, ContainerRequest{
		Image:      job.Image,
		Cmd:        cmd,
		BindMounts: bindMounts,
		WorkingDir: "/workspace",
	})
	if err != nil {
		s.finish(job.RunID, StateFailed, -1, err.Error())
		return
	}

	logsDone := make(chan struct{})
	go func() {
		defer close(logsDone)
		s.streamLogs(ctx, job.RunID, handle)
	}()

	exitCode, err := handle.Wait(ctx)
	if err != nil {
		if ctx.Err() != nil {
			if terr := handle.Terminate(context.Background()); terr != nil {
				slog.Warn("job.terminate_failed", "run", job.RunID, "error", terr)
			}
			s.finish(job.RunID, StateCancelled, -1, "cancelled")
		} else {
			s.finish(job.RunID, StateFailed, exitCode, err.Error())
		}
		return
	}
	<-logsDone

	if exitCode != 0 {
		s.finish(job.RunID, StateFailed, exitCode, fmt.Sprintf("synthesis exited with code %d", exitCode))
		return
	}
	s.finish(job.RunID, StateSucceeded, 0, "")
}

// streamLogs reads container stdout line by line, updating the job's log
// tail and progress timestamp. "Progress" is any new
// stage-boundary string (advances Stage) or any new log line within the
// last minute (unconditionally bumps LastProgressAt).
func (s *Supervisor) streamLogs(ctx context.Context, runID string, handle ContainerHandle) {
	rc, err := handle.Logs(ctx)
	if err != nil {
		slog.Warn("job.logs_unavailable", "run", runID, "error", err)
		return
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		s.appendLog(runID, line)
		if stage := s.matchStage(line); stage != "" {
			s.setStage(runID, stage)
		}
	}
}

func (s *Supervisor) matchStage(line string) string {
	for _, stage := range s.stages {
		if strings.Contains(line, stage) {
			return stage
		}
	}
	return ""
}

func (s *Supervisor) appendLog(runID, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[runID]
	if !ok {
		return
	}
	j.LogTail = append(j.LogTail, line)
	if len(j.LogTail) > logTailSize {
		j.LogTail = j.LogTail[len(j.LogTail)-logTailSize:]
	}
	j.LastProgressAt = time.Now()
}

func (s *Supervisor) setStage(runID, stage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[runID]; ok {
		j.Stage = stage
		j.LastProgressAt = time.Now()
	}
}

func (s *Supervisor) setState(runID string, state State, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[runID]; ok {
		j.State = state
		if errMsg != "" {
			j.Err = errMsg
		}
	}
}

func (s *Supervisor) finish(runID string, state State, exitCode int, errMsg string) {
	s.mu.Lock()
	j, ok := s.jobs[runID]
	if ok {
		j.State = state
		j.ExitCode = exitCode
		j.Err = errMsg
		if state == StateSucceeded {
			j.Metrics = parseMetrics(j.LogTail)
		}
		delete(s.sessionJob, j.SessionID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	slog.Info("job.finished", "run", runID, "state", state, "exit_code", exitCode)
}

// Status returns the current snapshot of runID, recomputing stuck state on
// read.
func (s *Supervisor) Status(runID string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[runID]
	if !ok {
		return Job{}, apperr.New(apperr.KindNotFound, "synthesis job %q not found", runID)
	}
	if j.State == StateRunning && time.Since(j.LastProgressAt) > s.stuckThreshold {
		j.State = StateStuck
	}
	return j.snapshot(), nil
}

// Wait blocks (or returns immediately if already terminal) up to upTo for
// runID to reach a terminal state, then returns the current state
// regardless.
func (s *Supervisor) Wait(ctx context.Context, runID string, upTo time.Duration) (Job, error) {
	deadline := time.Now().Add(upTo)
	for {
		j, err := s.Status(runID)
		if err != nil {
			return Job{}, err
		}
		if j.State.Terminal() || time.Now().After(deadline) {
			return j, nil
		}
		select {
		case <-ctx.Done():
			return j, nil
		case <-time.After(2 * time.Second):
		}
	}
}

// Cancel signals runID's worker to terminate; the worker force-terminates
// the container.
func (s *Supervisor) Cancel(runID string) {
	if c, ok := s.cancel.Load(runID); ok {
		c.(context.CancelFunc)()
	}
}

// Metrics returns the extracted PPA for a succeeded job, or apperr.KindJobFailed
// if the job is not in state Succeeded.
func (s *Supervisor) Metrics(runID string) (PPA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[runID]
	if !ok {
		return PPA{}, apperr.New(apperr.KindNotFound, "synthesis job %q not found", runID)
	}
	if j.State != StateSucceeded {
		return PPA{}, apperr.New(apperr.KindJobFailed, "synthesis job %q is in state %s, not succeeded", runID, j.State)
	}
	if j.Metrics == nil {
		return PPA{}, nil
	}
	return *j.Metrics, nil
}

// SearchLogs greps runID's full captured log tail for pattern (a plain
// substring match, matching the search_logs_tool contract).
func (s *Supervisor) SearchLogs(runID, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[runID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "synthesis job %q not found", runID)
	}
	var out []string
	for _, line := range j.LogTail {
		if strings.Contains(line, pattern) {
			out = append(out, line)
		}
	}
	return out, nil
}

func buildSynthesisCmd(params Params) []string {
	args := []string{"synth", "--top", params.TopModule}
	if params.ClockPeriodNs > 0 {
		args = append(args, "--clock-period-ns", fmt.Sprintf("%g", params.ClockPeriodNs))
	}
	if params.Utilization > 0 {
		args = append(args, "--utilization", fmt.Sprintf("%g", params.Utilization))
	}
	if params.Margin > 0 {
		args = append(args, "--margin", fmt.Sprintf("%g", params.Margin))
	}
	if params.ConstraintsFile != "" {
		args = append(args, "--sdc", params.ConstraintsFile)
	}
	args = append(args, params.SourceFiles...)
	return args
}
