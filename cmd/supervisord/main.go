// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package main

import (
	"flag"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/framepipe/internal/api"
	"github.com/ZSC714725/framepipe/internal/config"
	"github.com/ZSC714725/framepipe/internal/logger"
	"github.com/ZSC714725/framepipe/internal/resolve"
	"github.com/ZSC714725/framepipe/internal/supervisor"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	bind := flag.String("bind", "", "Bind address (overrides config)")
	workerBin := flag.String("worker", "", "Worker binary path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Load config: %v", err)
		}
	}

	bindAddr := cfg.Server.Bind
	if *bind != "" {
		bindAddr = *bind
	}
	if *workerBin != "" {
		cfg.Worker.Path = *workerBin
	}

	lg := logger.New("framepipe")
	resolver := resolve.FromConfig(cfg)

	manager := supervisor.New(supervisor.Config{
		Resolver: resolver,
		Paths:    resolver.Paths(cfg.Stages.Template),
		Logger:   lg,
		LogLines: cfg.Log.MaxLines,
	})

	handler := api.NewHandler(manager, resolver)

	r := gin.Default()
	r.Use(cors.Default())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/job", handler.StartJob)
		v1.PUT("/job/command", handler.Command)
		v1.GET("/job/state", handler.GetState)
		v1.GET("/job/report", handler.GetReport)
		v1.GET("/diagnostics", handler.Diagnostics)
	}

	log.Printf("FramePipe supervisor listening on %s", bindAddr)
	if err := r.Run(bindAddr); err != nil {
		log.Fatalf("Server: %v", err)
	}
}
