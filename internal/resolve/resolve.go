// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package resolve locates the external executables and runtime paths.
// It is the production implementation of the resolver capability; tests
// substitute fakes.
package resolve

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ZSC714725/framepipe/internal/config"
	"github.com/ZSC714725/framepipe/internal/job"
)

// Resolver resolves configured paths, falling back to PATH lookup for
// the executables.
type Resolver struct {
	filterRunner string
	encoder      string
	worker       string
	runtimeHome  string
	pluginPath   string
	packagePath  string
	modelPath    string
}

// FromPaths builds the worker-side resolver from the job's paths
// section.
func FromPaths(p job.Paths) *Resolver {
	r := &Resolver{
		filterRunner: p.FilterRunner,
		encoder:      p.Encoder,
		runtimeHome:  p.RuntimeHome,
		pluginPath:   p.PluginPath,
		packagePath:  p.PackagePath,
		modelPath:    p.ModelPath,
	}
	r.fillDefaults()
	return r
}

// FromConfig builds the supervisor-side resolver from the application
// config.
func FromConfig(cfg *config.Config) *Resolver {
	r := &Resolver{
		filterRunner: cfg.Stages.FilterRunner,
		encoder:      cfg.Stages.Encoder,
		worker:       cfg.Worker.Path,
		runtimeHome:  cfg.Runtime.Home,
		pluginPath:   cfg.Runtime.PluginPath,
		packagePath:  cfg.Runtime.PackagePath,
		modelPath:    cfg.Runtime.ModelPath,
	}
	r.fillDefaults()
	return r
}

func (r *Resolver) fillDefaults() {
	if r.filterRunner == "" {
		r.filterRunner = "vspipe"
	}
	if r.encoder == "" {
		r.encoder = "ffmpeg"
	}
	if r.worker == "" {
		r.worker = "framepipe-worker"
	}
}

func lookup(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	return path, nil
}

// FilterRunner resolves the stage A binary.
func (r *Resolver) FilterRunner() (string, error) { return lookup(r.filterRunner) }

// Encoder resolves the stage B binary.
func (r *Resolver) Encoder() (string, error) { return lookup(r.encoder) }

// Worker resolves the worker binary spawned by the supervisor.
func (r *Resolver) Worker() (string, error) { return lookup(r.worker) }

func (r *Resolver) RuntimeHome() string { return r.runtimeHome }
func (r *Resolver) PluginPath() string  { return r.pluginPath }
func (r *Resolver) PackagePath() string { return r.packagePath }
func (r *Resolver) ModelPath() string   { return r.modelPath }

// Paths exports the resolved locations for the job handoff file.
func (r *Resolver) Paths(template string) job.Paths {
	return job.Paths{
		FilterRunner: r.filterRunner,
		Encoder:      r.encoder,
		Template:     template,
		RuntimeHome:  r.runtimeHome,
		PluginPath:   r.pluginPath,
		PackagePath:  r.packagePath,
		ModelPath:    r.modelPath,
	}
}

// Probe runs each stage binary with its version flag and returns the
// first reported line, keyed by stage name. Missing binaries yield the
// lookup error text instead.
func (r *Resolver) Probe(ctx context.Context) map[string]string {
	out := make(map[string]string, 2)
	out["filter"] = probeVersion(ctx, r.filterRunner, "--version")
	out["encoder"] = probeVersion(ctx, r.encoder, "-version")
	return out
}

func probeVersion(ctx context.Context, name, flag string) string {
	path, err := lookup(name)
	if err != nil {
		return err.Error()
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	cmd := exec.CommandContext(cctx, path, flag)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Sprintf("%s: %v", path, err)
	}

	line, _, _ := strings.Cut(strings.TrimSpace(buf.String()), "\n")
	return strings.TrimSpace(line)
}
