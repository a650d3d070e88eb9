// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package event implements the worker's line-oriented JSON protocol:
// exactly one compact JSON object per newline-terminated line on the
// worker's stdout, in emission order.
package event

import (
	"encoding/json"
	"fmt"
)

// Level classifies log events.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is the closed set of messages crossing the worker/supervisor
// boundary. Undecodable lines are not events; the transport treats them
// as plain text.
type Event interface {
	eventType() string
}

// Progress reports pipeline throughput. TotalFrames may be an estimate:
// when the true total is unknown it equals Frame, so the fraction
// Frame/TotalFrames stays inside [0,1].
type Progress struct {
	Frame       int64   `json:"frame"`
	TotalFrames int64   `json:"totalFrames"`
	FPS         float64 `json:"fps"`
	ETA         float64 `json:"eta"`
}

func (Progress) eventType() string { return "progress" }

// Fraction returns the completion ratio clamped into [0,1].
func (p Progress) Fraction() float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	f := float64(p.Frame) / float64(p.TotalFrames)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// Log is a leveled diagnostic message.
type Log struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func (Log) eventType() string { return "log" }

// Error reports a failure; the worker still decides the exit code.
type Error struct {
	Message string `json:"message"`
}

func (Error) eventType() string { return "error" }

// Complete announces the job outcome. The worker's exit code stays
// authoritative; this event mainly carries the output path.
type Complete struct {
	Success    bool    `json:"success"`
	OutputPath *string `json:"outputPath"`
}

func (Complete) eventType() string { return "complete" }

// Decode parses one wire line into its Event variant.
func Decode(line []byte) (Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch probe.Type {
	case "progress":
		var ev Progress
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		return ev, nil
	case "log":
		var ev Log
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode log: %w", err)
		}
		return ev, nil
	case "error":
		var ev Error
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		return ev, nil
	case "complete":
		var ev Complete
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("decode complete: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", probe.Type)
	}
}
