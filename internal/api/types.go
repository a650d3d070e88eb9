// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package api

import "github.com/ZSC714725/framepipe/internal/script"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// JobRequest starts one processing run. Filter and encoderArgs are
// opaque blocks passed through to the worker.
type JobRequest struct {
	ID          string                  `json:"id"`
	Input       string                  `json:"input"`
	Output      string                  `json:"output"`
	Filter      map[string]script.Value `json:"filter"`
	EncoderArgs []string                `json:"encoderArgs"`
	TotalFrames int64                   `json:"totalFrames"`
	FPSNum      int                     `json:"fpsNum"`
	FPSDen      int                     `json:"fpsDen"`
	FieldOrder  string                  `json:"fieldOrder"`
}

// JobResponse acknowledges a started job.
type JobResponse struct {
	ID string `json:"id"`
}

// CommandRequest drives the active job.
type CommandRequest struct {
	Command string `json:"command"`
}
