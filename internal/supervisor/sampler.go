// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package supervisor

import (
	"sync"

	gopsutilprocess "github.com/shirou/gopsutil/v3/process"
)

// sampler 使用 gopsutil 采集 worker 进程 CPU 和内存
type sampler struct {
	mu   sync.RWMutex
	proc *gopsutilprocess.Process
}

func (s *sampler) Start(pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	proc, err := gopsutilprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.proc = proc
	return nil
}

func (s *sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proc = nil
}

func (s *sampler) Current() (cpu float64, memory uint64) {
	s.mu.RLock()
	proc := s.proc
	s.mu.RUnlock()
	if proc == nil {
		return 0, 0
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		cpu = cpuPct
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		memory = memInfo.RSS
	}
	return cpu, memory
}
