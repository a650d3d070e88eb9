// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package supervisor spawns one worker per job, decodes its event
// stream and exposes the processing state machine.
package supervisor

import (
	"container/ring"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/job"
	"github.com/ZSC714725/framepipe/internal/logger"
	"github.com/ZSC714725/framepipe/internal/worker"
)

var (
	ErrJobActive   = errors.New("a job is already active")
	ErrNoActiveJob = errors.New("no active job")
)

// WorkerResolver locates the worker executable.
type WorkerResolver interface {
	Worker() (string, error)
}

// Line is one timestamped entry of the rolling log buffer. Level is
// empty for plain-text passthrough lines.
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level,omitempty"`
	Data      string    `json:"data"`
}

// Status is a snapshot of the manager.
type Status struct {
	JobID      string         `json:"jobId"`
	State      string         `json:"state"`
	Message    string         `json:"message,omitempty"`
	Progress   event.Progress `json:"progress"`
	Fraction   float64        `json:"fraction"`
	Runtime    int64          `json:"runtimeSeconds"`
	CPU        float64        `json:"cpuPercent"`
	Memory     uint64         `json:"memoryBytes"`
	OutputPath string         `json:"outputPath,omitempty"`
}

// Config for a Manager.
type Config struct {
	Resolver WorkerResolver
	// Paths is stamped into every job handoff file.
	Paths  job.Paths
	Logger logger.Logger
	// LogLines caps the rolling log buffer (default 200).
	LogLines int
}

// Manager runs at most one job at a time.
type Manager struct {
	resolver WorkerResolver
	paths    job.Paths
	logger   logger.Logger
	logLines int

	mu         sync.Mutex
	state      State
	jobID      string
	message    string
	progress   event.Progress
	lastError  string
	complete   *event.Complete
	outputPath string
	cmd        *exec.Cmd
	configPath string
	startedAt  time.Time
	log        *ring.Ring

	readers sync.WaitGroup
	done    chan struct{}

	sampler sampler
}

// New creates an idle manager.
func New(cfg Config) *Manager {
	logLines := cfg.LogLines
	if logLines <= 0 {
		logLines = 200
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logger.Nop()
	}
	return &Manager{
		resolver: cfg.Resolver,
		paths:    cfg.Paths,
		logger:   lg,
		logLines: logLines,
		state:    StateIdle,
		log:      ring.New(logLines),
	}
}

// StartJob serializes the job to a temp config file and spawns the
// worker. It is a no-op error when a job is already active.
func (m *Manager) StartJob(jb *job.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Active() {
		return "", ErrJobActive
	}

	if jb.ID == "" {
		jb.ID = shortuuid.New()
	}
	jb.Paths = m.paths

	if err := jb.Validate(); err != nil {
		return "", err
	}

	workerBin, err := m.resolver.Worker()
	if err != nil {
		return "", fmt.Errorf("resolve worker executable: %w", err)
	}

	f, err := os.CreateTemp("", "framepipe-job-*.json")
	if err != nil {
		return "", fmt.Errorf("create job config: %w", err)
	}
	configPath := f.Name()
	f.Close()
	if err := jb.WriteFile(configPath); err != nil {
		os.Remove(configPath)
		return "", fmt.Errorf("write job config: %w", err)
	}

	cmd := exec.Command(workerBin, "-config", configPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.Remove(configPath)
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		os.Remove(configPath)
		return "", err
	}

	if err := cmd.Start(); err != nil {
		os.Remove(configPath)
		return "", fmt.Errorf("start worker: %w", err)
	}

	// Fresh job owns the manager now.
	m.state = StatePreparing
	m.jobID = jb.ID
	m.message = ""
	m.progress = event.Progress{}
	m.lastError = ""
	m.complete = nil
	m.outputPath = ""
	m.cmd = cmd
	m.configPath = configPath
	m.startedAt = time.Now()
	m.log = ring.New(m.logLines)
	m.done = make(chan struct{})

	if err := m.sampler.Start(cmd.Process.Pid); err != nil {
		m.logger.Debug("sample worker %d: %v", cmd.Process.Pid, err)
	}

	m.readers.Add(2)
	go m.readEvents(stdout)
	go m.readDiag(stderr)
	go m.waitWorker(cmd)

	m.logger.Info("job %s started (worker pid %d)", jb.ID, cmd.Process.Pid)
	return jb.ID, nil
}

// Cancel signals the worker to terminate. The final transition happens
// in the termination handler once the worker actually exits.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd == nil || !m.state.Active() {
		return ErrNoActiveJob
	}

	m.cmd.Process.Signal(syscall.SIGTERM)
	m.transitionLocked(StateCancelling)
	m.logger.Info("job %s cancelling", m.jobID)
	return nil
}

// Status returns a snapshot of the current job.
func (m *Manager) Status() Status {
	cpu, memory := m.sampler.Current()

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		JobID:      m.jobID,
		State:      m.state.String(),
		Message:    m.message,
		Progress:   m.progress,
		Fraction:   m.progress.Fraction(),
		CPU:        cpu,
		Memory:     memory,
		OutputPath: m.outputPath,
	}
	if !m.startedAt.IsZero() {
		s.Runtime = int64(time.Since(m.startedAt).Seconds())
	}
	return s
}

// Report returns the rolling log buffer, oldest first.
func (m *Manager) Report() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Line
	m.log.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(Line))
		}
	})
	return out
}

// Wait blocks until the current job's termination handler has run.
// Waiting with no job started returns immediately.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// readEvents is the primary-output reader: raw chunks are reassembled
// into lines, each line decoded as an event or degraded to plain text.
func (m *Manager) readEvents(r io.Reader) {
	defer m.readers.Done()

	var dec event.StreamDecoder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(buf[:n]) {
				m.handleLine(line)
			}
		}
		if err != nil {
			if tail := dec.Flush(); tail != nil {
				m.handleLine(tail)
			}
			return
		}
	}
}

// readDiag drains the worker's error channel into the log buffer as
// plain text. The worker forwards stage diagnostics there verbatim.
func (m *Manager) readDiag(r io.Reader) {
	defer m.readers.Done()

	var dec event.StreamDecoder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, line := range dec.Feed(buf[:n]) {
				m.appendLog("", string(line))
			}
		}
		if err != nil {
			if tail := dec.Flush(); tail != nil {
				m.appendLog("", string(tail))
			}
			return
		}
	}
}

// handleLine dispatches one complete line from the worker's primary
// output. Decode failures never stop the read loop.
func (m *Manager) handleLine(line []byte) {
	ev, err := event.Decode(line)
	if err != nil {
		m.appendLog("", string(line))
		return
	}

	switch ev := ev.(type) {
	case event.Progress:
		m.mu.Lock()
		m.progress = ev
		if m.state == StatePreparing || m.state == StateProcessing {
			m.transitionLocked(StateProcessing)
		}
		m.mu.Unlock()
	case event.Log:
		m.appendLog(string(ev.Level), ev.Message)
		if ev.Level == event.LevelError {
			m.mu.Lock()
			m.lastError = ev.Message
			m.mu.Unlock()
		}
	case event.Error:
		m.appendLog(string(event.LevelError), ev.Message)
		m.mu.Lock()
		m.lastError = ev.Message
		m.mu.Unlock()
	case event.Complete:
		// Informational: the worker's exit code decides the outcome.
		m.mu.Lock()
		m.complete = &ev
		if ev.OutputPath != nil {
			m.outputPath = *ev.OutputPath
		}
		m.mu.Unlock()
	}
}

// waitWorker is the termination handler: it reaps the worker after the
// readers drained both streams, maps the exit code to the final state
// and cleans up the job's temp config file.
func (m *Manager) waitWorker(cmd *exec.Cmd) {
	m.readers.Wait()
	err := cmd.Wait()
	code := workerExitCode(err)

	m.mu.Lock()
	m.sampler.Stop()
	if m.configPath != "" {
		os.Remove(m.configPath)
		m.configPath = ""
	}
	m.cmd = nil

	switch code {
	case worker.ExitOK:
		m.message = ""
		m.transitionLocked(StateCompleted)
	case worker.ExitCancelled:
		m.message = "cancelled"
		m.transitionLocked(StateCancelled)
	default:
		msg := fmt.Sprintf("worker exited with code %d", code)
		if m.lastError != "" {
			msg += ": " + m.lastError
		}
		m.message = msg
		m.transitionLocked(StateFailed)
	}
	jobID := m.jobID
	state := m.state
	done := m.done
	m.mu.Unlock()

	m.logger.Info("job %s finished: %s", jobID, state)
	if done != nil {
		close(done)
	}
}

func (m *Manager) transitionLocked(to State) {
	if m.state == to {
		return
	}
	if !validTransition(m.state, to) {
		m.logger.Warn("job %s: invalid transition %s -> %s", m.jobID, m.state, to)
		return
	}
	m.state = to
}

func (m *Manager) appendLog(level, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Value = Line{Timestamp: time.Now(), Level: level, Data: data}
	m.log = m.log.Next()
}

// workerExitCode maps the Wait error to the protocol's exit code. A
// worker killed by SIGTERM before installing its handler counts as
// cancelled, not failed.
func workerExitCode(err error) int {
	if err == nil {
		return worker.ExitOK
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		if status.Signal() == syscall.SIGTERM {
			return worker.ExitCancelled
		}
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}
