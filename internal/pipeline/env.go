// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package pipeline

import "strings"

// conflictingEnv lists variables that point the embedded interpreter at
// a foreign installation. They are stripped before the resolved paths
// are applied.
var conflictingEnv = map[string]bool{
	"PYTHONHOME":       true,
	"PYTHONPATH":       true,
	"PYTHONSTARTUP":    true,
	"PYTHONEXECUTABLE": true,
	"VIRTUAL_ENV":      true,
	"CONDA_PREFIX":     true,
}

// buildEnv derives the stage environment from the inherited one:
// conflicting interpreter markers are removed, then every resolved
// runtime path is exported. Unresolved paths are simply omitted.
func buildEnv(base []string, r Resolver) []string {
	env := make([]string, 0, len(base)+4)
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if conflictingEnv[name] {
			continue
		}
		env = append(env, kv)
	}

	if v := r.RuntimeHome(); v != "" {
		env = append(env, "PYTHONHOME="+v)
	}
	if v := r.PluginPath(); v != "" {
		env = append(env, "VAPOURSYNTH_PLUGIN_PATH="+v)
	}
	if v := r.PackagePath(); v != "" {
		env = append(env, "PYTHONPATH="+v)
	}
	if v := r.ModelPath(); v != "" {
		env = append(env, "VSMLRT_MODEL_PATH="+v)
	}
	return env
}
