// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package cancel turns interrupt/termination signals into a cooperative
// cancellation flag. The signal-delivery path only forwards onto a
// channel; terminating tracked children and everything else heavier
// happens on an ordinary goroutine.
package cancel

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Canceller owns the process-wide cancellation flag and the registry of
// live child processes to terminate on a signal.
type Canceller struct {
	flag atomic.Bool

	mu    sync.Mutex
	procs map[int]*os.Process

	ch chan os.Signal
}

// Install registers for SIGINT and SIGTERM and starts the dispatch
// goroutine.
func Install() *Canceller {
	c := &Canceller{
		procs: make(map[int]*os.Process),
		ch:    make(chan os.Signal, 1),
	}
	signal.Notify(c.ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		for range c.ch {
			c.flag.Store(true)
			c.terminateTracked()
		}
	}()

	return c
}

// Cancelled is the orchestrator's cancellation predicate.
func (c *Canceller) Cancelled() bool {
	return c.flag.Load()
}

// Track registers a child for proactive termination. If cancellation
// already happened the child is signalled immediately.
func (c *Canceller) Track(p *os.Process) {
	if p == nil {
		return
	}
	c.mu.Lock()
	c.procs[p.Pid] = p
	c.mu.Unlock()

	if c.flag.Load() {
		p.Signal(syscall.SIGTERM)
	}
}

// Untrack removes a child after it has been reaped.
func (c *Canceller) Untrack(p *os.Process) {
	if p == nil {
		return
	}
	c.mu.Lock()
	delete(c.procs, p.Pid)
	c.mu.Unlock()
}

func (c *Canceller) terminateTracked() {
	c.mu.Lock()
	procs := make([]*os.Process, 0, len(c.procs))
	for _, p := range c.procs {
		procs = append(procs, p)
	}
	c.mu.Unlock()

	for _, p := range procs {
		p.Signal(syscall.SIGTERM)
	}
}

// IgnoreBrokenPipe disables SIGPIPE for the whole worker. Cancellation
// closes either end of the inter-stage pipe in unpredictable order and
// must not kill the worker through a stray write.
func IgnoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}
