// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZSC714725/framepipe/internal/config"
	"github.com/ZSC714725/framepipe/internal/job"
)

func fakeBin(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestFromPathsDefaults(t *testing.T) {
	r := FromPaths(job.Paths{})

	p := r.Paths("")
	assert.Equal(t, "vspipe", p.FilterRunner)
	assert.Equal(t, "ffmpeg", p.Encoder)
	assert.Empty(t, p.RuntimeHome)
}

func TestFromConfigAbsolutePaths(t *testing.T) {
	dir := t.TempDir()
	vspipe := fakeBin(t, dir, "vspipe", "exit 0")
	ffmpeg := fakeBin(t, dir, "ffmpeg", "exit 0")

	cfg := config.Default()
	cfg.Stages.FilterRunner = vspipe
	cfg.Stages.Encoder = ffmpeg
	cfg.Runtime.PluginPath = "/opt/vs/plugins"

	r := FromConfig(cfg)

	got, err := r.FilterRunner()
	require.NoError(t, err)
	assert.Equal(t, vspipe, got)

	got, err = r.Encoder()
	require.NoError(t, err)
	assert.Equal(t, ffmpeg, got)

	assert.Equal(t, "/opt/vs/plugins", r.PluginPath())
}

func TestLookupFailure(t *testing.T) {
	r := FromPaths(job.Paths{FilterRunner: filepath.Join(t.TempDir(), "nonexistent")})

	_, err := r.FilterRunner()
	assert.Error(t, err)
}

func TestPathsExport(t *testing.T) {
	r := FromPaths(job.Paths{
		FilterRunner: "/opt/vs/bin/vspipe",
		RuntimeHome:  "/opt/vs/python",
	})

	p := r.Paths("/etc/framepipe/deinterlace.vpy")
	assert.Equal(t, "/opt/vs/bin/vspipe", p.FilterRunner)
	assert.Equal(t, "ffmpeg", p.Encoder)
	assert.Equal(t, "/etc/framepipe/deinterlace.vpy", p.Template)
	assert.Equal(t, "/opt/vs/python", p.RuntimeHome)
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	vspipe := fakeBin(t, dir, "vspipe", `echo "VapourSynth Video Processing Library R65"`)
	ffmpeg := fakeBin(t, dir, "ffmpeg", `echo "ffmpeg version 6.1" >&2`)

	r := FromPaths(job.Paths{FilterRunner: vspipe, Encoder: ffmpeg})

	versions := r.Probe(context.Background())
	assert.Equal(t, "VapourSynth Video Processing Library R65", versions["filter"])
	assert.Equal(t, "ffmpeg version 6.1", versions["encoder"])
}

func TestProbeMissingBinary(t *testing.T) {
	r := FromPaths(job.Paths{
		FilterRunner: filepath.Join(t.TempDir(), "nonexistent"),
		Encoder:      filepath.Join(t.TempDir(), "nonexistent"),
	})

	versions := r.Probe(context.Background())
	assert.Contains(t, versions["filter"], "lookup")
	assert.Contains(t, versions["encoder"], "lookup")
}
