// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package pipeline runs the two-stage transcode: the filter runner
// (stage A) evaluates the generated script and streams decoded frames
// over a kernel pipe into the encoder (stage B). Frames never pass
// through this process; only the two diagnostic streams do.
package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/job"
)

// Stage identifiers used in failure outcomes and on the wire.
const (
	StageFilter  = "filter"
	StageEncoder = "encoder"
)

// ErrExecutableNotFound is returned before anything is spawned when a
// stage binary cannot be resolved.
var ErrExecutableNotFound = errors.New("stage executable not found")

// Resolver locates the stage executables and the optional runtime
// paths exported into their environment. Empty path results mean
// "unresolved, omit".
type Resolver interface {
	FilterRunner() (string, error)
	Encoder() (string, error)
	RuntimeHome() string
	PluginPath() string
	PackagePath() string
	ModelPath() string
}

// OutcomeKind classifies how a run ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeCancelled
	OutcomeStageFailed
)

// Outcome is the result of one pipeline run. Stage and Code are only
// meaningful for OutcomeStageFailed.
type Outcome struct {
	Kind  OutcomeKind
	Stage string
	Code  int
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("stage %s failed with code %d", o.Stage, o.Code)
	}
}

// Config for an Orchestrator.
type Config struct {
	Resolver Resolver
	Reporter *event.Reporter

	// Diag receives stage A's diagnostic stream verbatim. Defaults to
	// os.Stderr; never the event channel.
	Diag io.Writer

	// PollInterval bounds cancellation latency (default 100ms).
	// ProgressInterval throttles progress processing (default 500ms).
	PollInterval     time.Duration
	ProgressInterval time.Duration

	// OnSpawn is invoked for every started stage so the cancellation
	// layer can track live children.
	OnSpawn func(p *os.Process)
}

// Orchestrator owns one PipelineRun at a time.
type Orchestrator struct {
	resolver         Resolver
	reporter         *event.Reporter
	diag             io.Writer
	pollInterval     time.Duration
	progressInterval time.Duration
	onSpawn          func(p *os.Process)
}

// New creates an orchestrator, filling interval defaults.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		resolver:         cfg.Resolver,
		reporter:         cfg.Reporter,
		diag:             cfg.Diag,
		pollInterval:     cfg.PollInterval,
		progressInterval: cfg.ProgressInterval,
		onSpawn:          cfg.OnSpawn,
	}
	if o.diag == nil {
		o.diag = os.Stderr
	}
	if o.pollInterval <= 0 {
		o.pollInterval = 100 * time.Millisecond
	}
	if o.progressInterval <= 0 {
		o.progressInterval = 500 * time.Millisecond
	}
	return o
}

// Run executes the pipeline for one job. isCancelled is polled at the
// poll interval while the encoder is alive; when it turns true both
// stages are signalled to terminate and the run reports Cancelled.
func (o *Orchestrator) Run(scriptPath string, jb *job.Job, isCancelled func() bool) (Outcome, error) {
	filterBin, err := o.resolver.FilterRunner()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, StageFilter, err)
	}
	encoderBin, err := o.resolver.Encoder()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, StageEncoder, err)
	}

	env := buildEnv(os.Environ(), o.resolver)

	pr, pw, err := os.Pipe()
	if err != nil {
		return Outcome{}, fmt.Errorf("create stage pipe: %w", err)
	}

	// Parent-owned stderr pipes instead of StderrPipe: cancellation can
	// then force EOF on the scanners by closing the read ends, even
	// while an orphaned stage descendant still holds a write end.
	filterDiagR, filterDiagW, err := os.Pipe()
	if err != nil {
		closeAll(pr, pw)
		return Outcome{}, fmt.Errorf("create diag pipe: %w", err)
	}
	encoderDiagR, encoderDiagW, err := os.Pipe()
	if err != nil {
		closeAll(pr, pw, filterDiagR, filterDiagW)
		return Outcome{}, fmt.Errorf("create diag pipe: %w", err)
	}

	filter := exec.Command(filterBin, filterArgs(scriptPath)...)
	filter.Stdout = pw
	filter.Stderr = filterDiagW
	filter.Env = env

	encoder := exec.Command(encoderBin, encoderArgs(jb)...)
	encoder.Stdin = pr
	encoder.Stderr = encoderDiagW
	encoder.Env = env

	if err := filter.Start(); err != nil {
		closeAll(pr, pw, filterDiagR, filterDiagW, encoderDiagR, encoderDiagW)
		return Outcome{}, fmt.Errorf("start %s: %w", StageFilter, err)
	}
	o.spawned(filter.Process)

	if err := encoder.Start(); err != nil {
		terminate(filter.Process)
		closeAll(pr, pw, filterDiagW, encoderDiagW)
		filter.Wait()
		closeAll(filterDiagR, encoderDiagR)
		return Outcome{}, fmt.Errorf("start %s: %w", StageEncoder, err)
	}
	o.spawned(encoder.Process)

	// The children hold their pipe ends now; the parent copies must
	// close or the encoder never sees EOF and the scanners never do
	// either.
	closeAll(pr, pw, filterDiagW, encoderDiagW)

	tracker := newProgressTracker(jb.TotalFrames, o.progressInterval, o.reporter)

	var readers errgroup.Group
	readers.Go(func() error {
		o.readFilterDiag(filterDiagR, tracker)
		return nil
	})
	readers.Go(func() error {
		readEncoderDiag(encoderDiagR, tracker)
		return nil
	})

	// Reap in spawn order. The diag pipes are parent-owned, so waiting
	// on the processes is independent of the scanners.
	procsDone := make(chan struct{})
	var filterErr, encoderErr error
	go func() {
		filterErr = filter.Wait()
		encoderErr = encoder.Wait()
		close(procsDone)
	}()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-procsDone:
			readers.Wait()
			closeAll(filterDiagR, encoderDiagR)
			if oc, failed := stageFailure(filterErr, encoderErr); failed {
				return oc, nil
			}
			return Outcome{Kind: OutcomeCompleted}, nil
		case <-ticker.C:
			if isCancelled() {
				terminate(filter.Process)
				terminate(encoder.Process)
				<-procsDone
				// Force EOF on the scanners; a stage may have left a
				// child behind that keeps the write ends open long
				// after the stages themselves are gone.
				closeAll(filterDiagR, encoderDiagR)
				readers.Wait()
				return Outcome{Kind: OutcomeCancelled}, nil
			}
		}
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

func (o *Orchestrator) spawned(p *os.Process) {
	if o.onSpawn != nil {
		o.onSpawn(p)
	}
}

// readFilterDiag forwards stage A's diagnostic stream line by line
// while watching for the single INPUT_INFO marker. Tokenizing re-frames
// CR-separated progress updates as ordinary lines; the line content
// itself passes through untouched.
func (o *Orchestrator) readFilterDiag(r io.Reader, t *progressTracker) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLine)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if m := inputInfoRe.FindStringSubmatch(line); m != nil {
			if frames, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				t.SetKnownTotal(frames)
			}
		}
		fmt.Fprintln(o.diag, line)
	}
}

// readEncoderDiag feeds stage B's key=value blocks into the tracker.
func readEncoderDiag(r io.Reader, t *progressTracker) {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLine)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		t.Observe(scanner.Text())
	}
}

func filterArgs(scriptPath string) []string {
	return []string{"-c", "y4m", scriptPath, "-"}
}

func encoderArgs(jb *job.Job) []string {
	args := []string{
		"-hide_banner",
		"-nostats",
		"-progress", "pipe:2",
		"-y",
		"-i", "pipe:0",
	}
	args = append(args, jb.EncoderArgs...)
	return append(args, jb.Output)
}

func terminate(p *os.Process) {
	if p != nil {
		p.Signal(syscall.SIGTERM)
	}
}

// stageFailure classifies the two exit statuses. The filter stage is
// inspected first: when it dies the encoder usually follows with a
// benign status, while an encoder death shows up on the filter side as
// a tolerated broken pipe.
func stageFailure(filterErr, encoderErr error) (Outcome, bool) {
	if code, bad := intolerableExit(filterErr, true); bad {
		return Outcome{Kind: OutcomeStageFailed, Stage: StageFilter, Code: code}, true
	}
	if code, bad := intolerableExit(encoderErr, false); bad {
		return Outcome{Kind: OutcomeStageFailed, Stage: StageEncoder, Code: code}, true
	}
	return Outcome{}, false
}

// intolerableExit reports whether an exit status is fatal. Tolerated:
// clean exit, termination by SIGTERM, and (for the filter stage) a
// broken pipe, since both arise from early pipe closure during
// shutdown or cancellation. Signal deaths and 128+n shell-style codes
// are both recognized.
func intolerableExit(err error, brokenPipeOK bool) (int, bool) {
	if err == nil {
		return 0, false
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1, true
	}

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		sig := status.Signal()
		if sig == syscall.SIGTERM || (brokenPipeOK && sig == syscall.SIGPIPE) {
			return 0, false
		}
		return 128 + int(sig), true
	}

	code := exitErr.ExitCode()
	switch {
	case code == 0:
		return 0, false
	case code == 128+int(syscall.SIGTERM):
		return 0, false
	case brokenPipeOK && code == 128+int(syscall.SIGPIPE):
		return 0, false
	}
	return code, true
}

// scanLine splits on both \n and \r so interactive-style diagnostic
// output is tokenized line by line.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}
