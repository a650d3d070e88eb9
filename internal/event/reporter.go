// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package event

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Reporter serializes events onto the worker's primary output channel.
// Every emit writes one compact JSON object plus a trailing newline in
// a single Write under the lock, so concurrent call sites never
// interleave partial lines. The writer is expected to be an unbuffered
// fd (stdout); nothing is held back for batching.
type Reporter struct {
	mu   sync.Mutex
	w    io.Writer
	diag io.Writer
}

// NewReporter creates a reporter writing events to w. diag receives a
// best-effort note when serialization fails; it must never be the same
// channel as w.
func NewReporter(w, diag io.Writer) *Reporter {
	return &Reporter{w: w, diag: diag}
}

// Progress emits a progress event.
func (r *Reporter) Progress(frame, totalFrames int64, fps, eta float64) {
	r.emit(struct {
		Type string `json:"type"`
		Progress
	}{"progress", Progress{Frame: frame, TotalFrames: totalFrames, FPS: fps, ETA: eta}})
}

// Log emits a leveled log event.
func (r *Reporter) Log(level Level, format string, args ...interface{}) {
	r.emit(struct {
		Type string `json:"type"`
		Log
	}{"log", Log{Level: level, Message: fmt.Sprintf(format, args...)}})
}

// Error emits an error event.
func (r *Reporter) Error(format string, args ...interface{}) {
	r.emit(struct {
		Type string `json:"type"`
		Error
	}{"error", Error{Message: fmt.Sprintf(format, args...)}})
}

// Complete emits the final outcome event. outputPath may be empty on
// failure; it is transmitted as null then.
func (r *Reporter) Complete(success bool, outputPath string) {
	var out *string
	if outputPath != "" {
		out = &outputPath
	}
	r.emit(struct {
		Type string `json:"type"`
		Complete
	}{"complete", Complete{Success: success, OutputPath: out}})
}

// emit never fails the caller: a marshal error (unreachable for
// well-typed events) degrades to a diagnostic note on the error
// channel.
func (r *Reporter) emit(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		if r.diag != nil {
			fmt.Fprintf(r.diag, "event serialization failed: %v\n", err)
		}
		return
	}
	data = append(data, '\n')

	r.mu.Lock()
	_, werr := r.w.Write(data)
	r.mu.Unlock()
	if werr != nil && r.diag != nil {
		fmt.Fprintf(r.diag, "event write failed: %v\n", werr)
	}
}
