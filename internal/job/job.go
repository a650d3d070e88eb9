// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

// Package job defines the per-run configuration handed from the
// supervisor to the worker through a temp file.
package job

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZSC714725/framepipe/internal/script"
)

// Paths carries the executable and runtime locations resolved by the
// supervisor. Empty values fall back to PATH lookup / omission.
type Paths struct {
	FilterRunner string `json:"filterRunner,omitempty"`
	Encoder      string `json:"encoder,omitempty"`
	Template     string `json:"template,omitempty"`
	RuntimeHome  string `json:"runtimeHome,omitempty"`
	PluginPath   string `json:"pluginPath,omitempty"`
	PackagePath  string `json:"packagePath,omitempty"`
	ModelPath    string `json:"modelPath,omitempty"`
}

// Job is one processing run. It is written once by the supervisor
// before spawning the worker and read once by the worker at startup;
// it never changes while the job is live.
type Job struct {
	ID     string `json:"id"`
	Input  string `json:"input"`
	Output string `json:"output"`

	// Filter holds the opaque filter parameter block. Key presence is
	// the "set" decision; absent keys leave the script's defaults.
	Filter map[string]script.Value `json:"filter,omitempty"`

	// EncoderArgs is the opaque encoding settings block, passed through
	// to the encoder between the stdin input and the output path.
	EncoderArgs []string `json:"encoderArgs,omitempty"`

	// Pre-known source properties; zero values mean "detect at run
	// time" (the filter script announces them on stderr).
	TotalFrames int64  `json:"totalFrames,omitempty"`
	FPSNum      int    `json:"fpsNum,omitempty"`
	FPSDen      int    `json:"fpsDen,omitempty"`
	FieldOrder  string `json:"fieldOrder,omitempty"` // "tff", "bff" or ""

	Paths Paths `json:"paths"`
}

// Load reads and decodes a job config file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnreadable, err)
	}
	j := &Job{}
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// WriteFile encodes the job to path.
func (j *Job) WriteFile(path string) error {
	data, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks the fields the worker cannot proceed without.
func (j *Job) Validate() error {
	if j.Input == "" || j.Output == "" {
		return ErrConfigInvalid
	}
	if _, err := os.Stat(j.Input); err != nil {
		return fmt.Errorf("%w: input %s", ErrInputMissing, j.Input)
	}
	if dir := filepath.Dir(j.Output); dir != "" {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return fmt.Errorf("%w: output directory %s", ErrOutputDirMissing, dir)
		}
	}
	return nil
}

// ScriptValues builds the substitution set for the filter script. The
// opaque filter block is passed through untouched; INPUT and the field
// order are derived from the job itself.
func (j *Job) ScriptValues() map[string]script.Value {
	values := make(map[string]script.Value, len(j.Filter)+2)
	for name, v := range j.Filter {
		values[name] = v
	}
	values["INPUT"] = script.String(j.Input)
	if j.FieldOrder != "" {
		values["TFF"] = script.Bool(j.FieldOrder == "tff")
	}
	return values
}
