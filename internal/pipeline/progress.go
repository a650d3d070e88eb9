// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/framepipe/internal/event"
)

// inputInfoRe matches the single marker line the filter script prints
// on stderr once the source is opened.
var inputInfoRe = regexp.MustCompile(`^INPUT_INFO:frames=([0-9]+),fps_num=([0-9]+),fps_den=([0-9]+)$`)

// progressTracker turns the encoder's high-frequency key=value blocks
// into throttled progress events.
//
// knownTotal is the only value shared between the two stage readers:
// the filter reader stores it, the encoder reader loads it. Everything
// else is private to the encoder reader goroutine.
type progressTracker struct {
	knownTotal atomic.Int64

	interval time.Duration
	reporter *event.Reporter
	now      func() time.Time

	frame     int64
	frameSeen bool
	fps       float64
	lastEmit  time.Time
}

func newProgressTracker(knownTotal int64, interval time.Duration, reporter *event.Reporter) *progressTracker {
	t := &progressTracker{
		interval: interval,
		reporter: reporter,
		now:      time.Now,
	}
	if knownTotal > 0 {
		t.knownTotal.Store(knownTotal)
	}
	return t
}

// SetKnownTotal records the total-frame estimate from the filter stage.
func (t *progressTracker) SetKnownTotal(frames int64) {
	if frames > 0 {
		t.knownTotal.Store(frames)
	}
}

// Observe consumes one encoder diagnostic line. The blocks repeat
// frame=, fps= and friends; a sample is processed when its fps= line
// lands at or after the throttle interval, measured from the last
// processed sample. Other keys are ignored.
func (t *progressTracker) Observe(line string) {
	if v, ok := intField(line, "frame="); ok {
		t.frame = v
		t.frameSeen = true
		return
	}
	if f, ok := floatField(line, "fps="); ok {
		t.fps = f
		t.maybeEmit()
	}
}

func (t *progressTracker) maybeEmit() {
	if !t.frameSeen {
		return
	}
	now := t.now()
	if !t.lastEmit.IsZero() && now.Sub(t.lastEmit) < t.interval {
		return
	}
	t.lastEmit = now

	frame := t.frame
	effective := t.knownTotal.Load()
	if effective <= 0 {
		// Unknown total: the best estimate is what we have encoded.
		effective = frame
	}
	remaining := effective - frame
	if remaining < 0 {
		remaining = 0
	}
	eta := 0.0
	if t.fps > 0 {
		eta = float64(remaining) / t.fps
	}
	t.reporter.Progress(frame, effective, t.fps, eta)
}

func intField(line, prefix string) (int64, bool) {
	rest, ok := fieldValue(line, prefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func floatField(line, prefix string) (float64, bool) {
	rest, ok := fieldValue(line, prefix)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func fieldValue(line, prefix string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}
