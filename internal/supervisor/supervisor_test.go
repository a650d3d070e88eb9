// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package supervisor

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/job"
	"github.com/ZSC714725/framepipe/internal/worker"
)

type fakeWorkerResolver struct {
	path string
	err  error
}

func (r *fakeWorkerResolver) Worker() (string, error) { return r.path, r.err }

// fakeWorker writes a shell script that plays the worker role.
func fakeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framepipe-worker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestJob(t *testing.T) *job.Job {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mkv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	return &job.Job{
		Input:  input,
		Output: filepath.Join(dir, "out.mkv"),
	}
}

func newTestManager(workerPath string) *Manager {
	return New(Config{
		Resolver: &fakeWorkerResolver{path: workerPath},
		LogLines: 32,
	})
}

func TestStartJobCompleted(t *testing.T) {
	cfgCopy := filepath.Join(t.TempDir(), "cfgpath")
	// The script is invoked as `worker -config <path>`; it records the
	// handoff path so the cleanup can be checked afterwards.
	workerPath := fakeWorker(t, fmt.Sprintf(`
printf '%%s' "$2" > %s
echo '{"type":"log","level":"info","message":"pipeline starting"}'
echo '{"type":"progress","frame":10,"totalFrames":100,"fps":25,"eta":3.6}'
echo "vspipe: script evaluated" >&2
echo '{"type":"complete","success":true,"outputPath":"/tmp/out.mkv"}'
exit 0
`, cfgCopy))

	m := newTestManager(workerPath)
	id, err := m.StartJob(newTestJob(t))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	m.Wait()

	st := m.Status()
	assert.Equal(t, "completed", st.State)
	assert.Equal(t, id, st.JobID)
	assert.Empty(t, st.Message)
	assert.Equal(t, int64(10), st.Progress.Frame)
	assert.InDelta(t, 0.1, st.Fraction, 1e-9)
	assert.Equal(t, "/tmp/out.mkv", st.OutputPath)

	// The handoff config must be gone once the job is over.
	handoff, err := os.ReadFile(cfgCopy)
	require.NoError(t, err)
	assert.NoFileExists(t, string(handoff))

	report := m.Report()
	var texts []string
	for _, line := range report {
		texts = append(texts, line.Data)
	}
	assert.Contains(t, texts, "pipeline starting")
	assert.Contains(t, texts, "vspipe: script evaluated")
}

func TestStartJobFailed(t *testing.T) {
	workerPath := fakeWorker(t, `
echo '{"type":"error","message":"encoder rejected the stream"}'
exit 1
`)

	m := newTestManager(workerPath)
	_, err := m.StartJob(newTestJob(t))
	require.NoError(t, err)

	m.Wait()

	st := m.Status()
	assert.Equal(t, "failed", st.State)
	assert.Contains(t, st.Message, "worker exited with code 1")
	assert.Contains(t, st.Message, "encoder rejected the stream")
}

func TestStartJobRejectsConcurrent(t *testing.T) {
	workerPath := fakeWorker(t, "sleep 5\n")

	m := newTestManager(workerPath)
	_, err := m.StartJob(newTestJob(t))
	require.NoError(t, err)

	_, err = m.StartJob(newTestJob(t))
	assert.ErrorIs(t, err, ErrJobActive)

	require.NoError(t, m.Cancel())
	m.Wait()
}

func TestCancel(t *testing.T) {
	workerPath := fakeWorker(t, "sleep 10\n")

	m := newTestManager(workerPath)
	_, err := m.StartJob(newTestJob(t))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, m.Cancel())
	m.Wait()

	st := m.Status()
	assert.Equal(t, "cancelled", st.State)
	assert.Equal(t, "cancelled", st.Message)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancelWithoutJob(t *testing.T) {
	m := newTestManager("unused")
	assert.ErrorIs(t, m.Cancel(), ErrNoActiveJob)
}

func TestStartJobValidates(t *testing.T) {
	m := newTestManager("unused")
	jb := newTestJob(t)
	jb.Input = filepath.Join(t.TempDir(), "absent.mkv")

	_, err := m.StartJob(jb)
	assert.ErrorIs(t, err, job.ErrInputMissing)
	assert.Equal(t, "idle", m.Status().State)
}

func TestHandleLineDispatch(t *testing.T) {
	m := newTestManager("unused")
	m.state = StatePreparing

	m.handleLine([]byte(`{"type":"progress","frame":50,"totalFrames":200,"fps":25,"eta":6}`))
	st := m.Status()
	assert.Equal(t, "processing", st.State)
	assert.Equal(t, int64(50), st.Progress.Frame)

	// Garbage degrades to a plain log line instead of breaking the loop.
	m.handleLine([]byte("Script evaluation done in 0.52 seconds"))
	m.handleLine([]byte(`{"type":"error","message":"filter crashed"}`))

	report := m.Report()
	require.Len(t, report, 2)
	assert.Equal(t, "", report[0].Level)
	assert.Equal(t, "Script evaluation done in 0.52 seconds", report[0].Data)
	assert.Equal(t, string(event.LevelError), report[1].Level)
	assert.Equal(t, "filter crashed", report[1].Data)
}

func TestHandleLineCompleteIsInformational(t *testing.T) {
	m := newTestManager("unused")
	m.state = StateProcessing

	m.handleLine([]byte(`{"type":"complete","success":true,"outputPath":"/tmp/o.mkv"}`))

	// Only the termination handler moves the state; the event just
	// carries the output path.
	st := m.Status()
	assert.Equal(t, "processing", st.State)
	assert.Equal(t, "/tmp/o.mkv", st.OutputPath)
}

func TestStatusJSONKeys(t *testing.T) {
	data, err := json.Marshal(Status{
		JobID:      "j1",
		State:      "processing",
		Runtime:    12,
		CPU:        50.0,
		Memory:     1 << 20,
		OutputPath: "/tmp/o.mkv",
	})
	require.NoError(t, err)

	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &keys))

	for _, key := range []string{"jobId", "state", "progress", "fraction", "runtimeSeconds", "cpuPercent", "memoryBytes", "outputPath"} {
		assert.Contains(t, keys, key)
	}
	assert.NotContains(t, keys, "runtime_seconds")
	assert.NotContains(t, keys, "cpu_percent")
	assert.NotContains(t, keys, "memory_bytes")
}

func TestWorkerExitCode(t *testing.T) {
	run := func(script string) error {
		return exec.Command("/bin/sh", "-c", script).Run()
	}

	assert.Equal(t, worker.ExitOK, workerExitCode(run("exit 0")))
	assert.Equal(t, 7, workerExitCode(run("exit 7")))
	assert.Equal(t, worker.ExitCancelled, workerExitCode(run("exit 130")))

	cmd := exec.Command("/bin/sh", "-c", "sleep 10")
	require.NoError(t, cmd.Start())
	require.NoError(t, cmd.Process.Signal(syscall.SIGTERM))
	assert.Equal(t, worker.ExitCancelled, workerExitCode(cmd.Wait()))

	assert.Equal(t, -1, workerExitCode(fmt.Errorf("wait: no child")))
}
