// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Worker  WorkerConfig  `yaml:"worker"`
	Stages  StagesConfig  `yaml:"stages"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// WorkerConfig locates the worker binary spawned per job.
type WorkerConfig struct {
	Path string `yaml:"path"`
}

// StagesConfig locates the two pipeline stage binaries and the filter
// script template. Empty values fall back to PATH lookup and the
// embedded template.
type StagesConfig struct {
	FilterRunner string `yaml:"filter_runner"`
	Encoder      string `yaml:"encoder"`
	Template     string `yaml:"template"`
}

// RuntimeConfig carries optional paths exported into the stage
// environment. All of them may stay empty.
type RuntimeConfig struct {
	Home        string `yaml:"home"`
	PluginPath  string `yaml:"plugin_path"`
	PackagePath string `yaml:"package_path"`
	ModelPath   string `yaml:"model_path"`
}

// LogConfig 日志配置
type LogConfig struct {
	MaxLines int `yaml:"max_lines"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		Worker: WorkerConfig{Path: "framepipe-worker"},
		Stages: StagesConfig{FilterRunner: "vspipe", Encoder: "ffmpeg"},
		Log:    LogConfig{MaxLines: 200},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// 填充空值
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = ":8080"
	}
	if cfg.Worker.Path == "" {
		cfg.Worker.Path = "framepipe-worker"
	}
	if cfg.Stages.FilterRunner == "" {
		cfg.Stages.FilterRunner = "vspipe"
	}
	if cfg.Stages.Encoder == "" {
		cfg.Stages.Encoder = "ffmpeg"
	}
	if cfg.Log.MaxLines <= 0 {
		cfg.Log.MaxLines = 200
	}

	return cfg, nil
}
