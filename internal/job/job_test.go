// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framepipe/internal/script"
)

func validJob(t *testing.T) *Job {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mkv")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))
	return &Job{
		ID:     "job-1",
		Input:  input,
		Output: filepath.Join(dir, "out.mkv"),
		Filter: map[string]script.Value{
			"PRESET": script.String("Slower"),
			"TR2":    script.Int(3),
		},
		EncoderArgs: []string{"-c:v", "libx264", "-crf", "18"},
		FieldOrder:  "tff",
	}
}

func TestJobRoundTrip(t *testing.T) {
	jb := validJob(t)
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, jb.WriteFile(path))

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, jb.ID, got.ID)
	assert.Equal(t, jb.Input, got.Input)
	assert.Equal(t, jb.EncoderArgs, got.EncoderArgs)
	assert.Equal(t, script.KindString, got.Filter["PRESET"].Kind())
	assert.Equal(t, script.KindInt, got.Filter["TR2"].Kind())
}

func TestLoadUnreadable(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, ErrConfigUnreadable)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestValidate(t *testing.T) {
	jb := validJob(t)
	assert.NoError(t, jb.Validate())

	missing := *jb
	missing.Input = filepath.Join(t.TempDir(), "absent.mkv")
	assert.ErrorIs(t, missing.Validate(), ErrInputMissing)

	badOut := *jb
	badOut.Output = filepath.Join(t.TempDir(), "no", "such", "dir", "out.mkv")
	assert.ErrorIs(t, badOut.Validate(), ErrOutputDirMissing)

	empty := *jb
	empty.Output = ""
	assert.ErrorIs(t, empty.Validate(), ErrConfigInvalid)
}

func TestScriptValues(t *testing.T) {
	jb := validJob(t)
	values := jb.ScriptValues()

	assert.Equal(t, script.String(jb.Input), values["INPUT"])
	assert.Equal(t, script.Bool(true), values["TFF"])
	assert.Equal(t, script.Int(3), values["TR2"])

	jb.FieldOrder = "bff"
	assert.Equal(t, script.Bool(false), jb.ScriptValues()["TFF"])

	jb.FieldOrder = ""
	_, ok := jb.ScriptValues()["TFF"]
	assert.False(t, ok)
}
