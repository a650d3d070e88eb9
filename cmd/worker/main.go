// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Command worker runs one transcode job described by a config file and
// streams JSON events on stdout.
package main

import (
	"flag"
	"os"

	"github.com/ZSC714725/framepipe/internal/event"
	"github.com/ZSC714725/framepipe/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Path to the job config file")
	flag.Parse()

	rep := event.NewReporter(os.Stdout, os.Stderr)

	if *configPath == "" {
		rep.Error("usage: framepipe-worker -config <path>")
		os.Exit(worker.ExitFailure)
	}

	os.Exit(worker.Run(*configPath, rep))
}
