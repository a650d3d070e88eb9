// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package job

import "errors"

var (
	ErrConfigUnreadable = errors.New("job config unreadable")
	ErrConfigInvalid    = errors.New("invalid job config: need input and output")
	ErrInputMissing     = errors.New("input file not found")
	ErrOutputDirMissing = errors.New("output directory not found")
)
