// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package worker

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/job"
	"github.com/ZSC714725/framepipe/internal/script"
)

func writeExecutable(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// quickFilter announces the source and exits immediately.
const quickFilter = `
echo "INPUT_INFO:frames=10,fps_num=25,fps_den=1" >&2
echo "payload"
exit 0
`

// writeJobConfig assembles a runnable job: real input file, fake stage
// binaries, minimal template.
func writeJobConfig(t *testing.T, filterBody, encoderBody string) (configPath, outputPath string) {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "in.mkv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	outputPath = filepath.Join(dir, "out.mkv")

	template := filepath.Join(dir, "t.vpy")
	require.NoError(t, os.WriteFile(template, []byte("src = \"{{INPUT}}\"\n"), 0o644))

	filter := writeExecutable(t, dir, "filter", filterBody)
	encoder := writeExecutable(t, dir, "encoder", encoderBody)

	jb := &job.Job{
		ID:     "test-job",
		Input:  input,
		Output: outputPath,
		Filter: map[string]script.Value{},
		Paths: job.Paths{
			FilterRunner: filter,
			Encoder:      encoder,
			Template:     template,
		},
	}
	configPath = filepath.Join(dir, "job.json")
	require.NoError(t, jb.WriteFile(configPath))
	return configPath, outputPath
}

func decodeAll(t *testing.T, buf *bytes.Buffer) []event.Event {
	t.Helper()
	var out []event.Event
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		ev, err := event.Decode([]byte(line))
		require.NoError(t, err, "line %q", line)
		out = append(out, ev)
	}
	return out
}

func TestRunCompletes(t *testing.T) {
	// The encoder writes the output file the way a real one would.
	configPath, outputPath := writeJobConfig(t, quickFilter, `
for a; do out=$a; done
cat >/dev/null
echo encoded > "$out"
exit 0
`)

	var out bytes.Buffer
	code := Run(configPath, event.NewReporter(&out, os.Stderr))

	assert.Equal(t, ExitOK, code)
	assert.FileExists(t, outputPath)

	events := decodeAll(t, &out)
	require.NotEmpty(t, events)
	last, ok := events[len(events)-1].(event.Complete)
	require.True(t, ok, "last event must be complete")
	assert.True(t, last.Success)
	require.NotNil(t, last.OutputPath)
	assert.Equal(t, outputPath, *last.OutputPath)
}

func TestRunStageFailureRemovesPartialOutput(t *testing.T) {
	configPath, outputPath := writeJobConfig(t, quickFilter, `
for a; do out=$a; done
echo partial > "$out"
cat >/dev/null
exit 2
`)

	var out bytes.Buffer
	code := Run(configPath, event.NewReporter(&out, os.Stderr))

	assert.Equal(t, ExitFailure, code)
	assert.NoFileExists(t, outputPath)

	var sawError bool
	for _, ev := range decodeAll(t, &out) {
		if e, ok := ev.(event.Error); ok && strings.Contains(e.Message, "encoder") {
			sawError = true
		}
		_, isComplete := ev.(event.Complete)
		assert.False(t, isComplete, "failed run must not emit complete")
	}
	assert.True(t, sawError)
}

func TestRunCancelled(t *testing.T) {
	// Long-lived stages: the filter streams slowly, the encoder writes a
	// partial output early and then keeps consuming.
	configPath, outputPath := writeJobConfig(t, `
echo "INPUT_INFO:frames=100000,fps_num=25,fps_den=1" >&2
i=0
while [ $i -lt 300 ]; do
  echo chunk || exit 0
  sleep 0.1
  i=$((i+1))
done
`, `
for a; do out=$a; done
echo partial > "$out"
cat >/dev/null
`)

	timer := time.AfterFunc(500*time.Millisecond, func() {
		syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	})
	defer timer.Stop()

	var out bytes.Buffer
	start := time.Now()
	code := Run(configPath, event.NewReporter(&out, os.Stderr))

	assert.Equal(t, ExitCancelled, code)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.NoFileExists(t, outputPath)

	for _, ev := range decodeAll(t, &out) {
		_, isComplete := ev.(event.Complete)
		assert.False(t, isComplete, "cancelled run must not emit complete")
	}
}

func TestRunBadConfig(t *testing.T) {
	var out bytes.Buffer
	code := Run(filepath.Join(t.TempDir(), "absent.json"), event.NewReporter(&out, os.Stderr))

	assert.Equal(t, ExitFailure, code)

	events := decodeAll(t, &out)
	require.Len(t, events, 1)
	e, ok := events[0].(event.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "load job config")
}

func TestRunMissingStageBinary(t *testing.T) {
	configPath, _ := writeJobConfig(t, quickFilter, "exit 0")

	jb, err := job.Load(configPath)
	require.NoError(t, err)
	jb.Paths.Encoder = filepath.Join(t.TempDir(), "nonexistent")
	require.NoError(t, jb.WriteFile(configPath))

	var out bytes.Buffer
	code := Run(configPath, event.NewReporter(&out, os.Stderr))

	assert.Equal(t, ExitFailure, code)
}
