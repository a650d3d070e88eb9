// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package worker is the per-job process: it loads the job config,
// generates the filter script, drives the pipeline and reports events
// on stdout. Exit codes: 0 success, ExitCancelled (130) user-cancelled,
// 1 any failure.
package worker

import (
	"errors"
	"os"

	"github.com/ZSC714725/framepipe/internal/cancel"
	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/job"
	"github.com/ZSC714725/framepipe/internal/pipeline"
	"github.com/ZSC714725/framepipe/internal/resolve"
	"github.com/ZSC714725/framepipe/internal/script"
)

// Exit codes reserved by the supervisor protocol.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitCancelled = 130
)

// Run processes one job described by the config file and returns the
// process exit code.
func Run(configPath string, rep *event.Reporter) int {
	canceller := cancel.Install()
	cancel.IgnoreBrokenPipe()

	jb, err := job.Load(configPath)
	if err != nil {
		rep.Error("load job config: %v", err)
		return ExitFailure
	}

	rep.Log(event.LevelInfo, "job %s: %s -> %s", jb.ID, jb.Input, jb.Output)

	engine := script.NewEngine(jb.Paths.Template)
	scriptFile, err := os.CreateTemp("", "framepipe-*.vpy")
	if err != nil {
		rep.Error("create script file: %v", err)
		return ExitFailure
	}
	scriptPath := scriptFile.Name()
	scriptFile.Close()
	defer os.Remove(scriptPath)

	if err := engine.WriteFile(scriptPath, jb.ScriptValues()); err != nil {
		rep.Error("generate filter script: %v", err)
		return ExitFailure
	}
	rep.Log(event.LevelDebug, "filter script written to %s", scriptPath)

	orch := pipeline.New(pipeline.Config{
		Resolver: resolve.FromPaths(jb.Paths),
		Reporter: rep,
		OnSpawn:  canceller.Track,
	})

	outcome, err := orch.Run(scriptPath, jb, canceller.Cancelled)
	if err != nil {
		if errors.Is(err, pipeline.ErrExecutableNotFound) {
			rep.Error("%v", err)
		} else {
			rep.Error("pipeline: %v", err)
		}
		removePartialOutput(jb.Output, rep)
		return ExitFailure
	}

	switch outcome.Kind {
	case pipeline.OutcomeCancelled:
		rep.Log(event.LevelInfo, "job %s cancelled", jb.ID)
		removePartialOutput(jb.Output, rep)
		return ExitCancelled
	case pipeline.OutcomeStageFailed:
		rep.Error("%s", outcome)
		removePartialOutput(jb.Output, rep)
		return ExitFailure
	default:
		rep.Complete(true, jb.Output)
		return ExitOK
	}
}

// removePartialOutput deletes whatever the encoder managed to write; a
// failed or cancelled job must not leave a truncated file behind.
func removePartialOutput(path string, rep *event.Reporter) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		rep.Log(event.LevelWarning, "remove partial output %s: %v", path, err)
	}
}
