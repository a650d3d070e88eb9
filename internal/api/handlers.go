// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// FramePipe - VapourSynth 流水线转码工具

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZSC714725/framepipe/internal/job"
	"github.com/ZSC714725/framepipe/internal/resolve"
	"github.com/ZSC714725/framepipe/internal/supervisor"
)

// Handler holds dependencies
type Handler struct {
	manager  *supervisor.Manager
	resolver *resolve.Resolver
}

// NewHandler creates API handler
func NewHandler(manager *supervisor.Manager, resolver *resolve.Resolver) *Handler {
	return &Handler{manager: manager, resolver: resolver}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// StartJob POST /api/v1/job
func (h *Handler) StartJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	if req.Input == "" || req.Output == "" {
		errResp(c, http.StatusBadRequest, "Input and output required", "")
		return
	}

	jb := &job.Job{
		ID:          req.ID,
		Input:       req.Input,
		Output:      req.Output,
		Filter:      req.Filter,
		EncoderArgs: req.EncoderArgs,
		TotalFrames: req.TotalFrames,
		FPSNum:      req.FPSNum,
		FPSDen:      req.FPSDen,
		FieldOrder:  req.FieldOrder,
	}

	id, err := h.manager.StartJob(jb)
	if err != nil {
		if errors.Is(err, supervisor.ErrJobActive) {
			errResp(c, http.StatusConflict, "Job already active", err.Error())
			return
		}
		errResp(c, http.StatusBadRequest, "Invalid job", err.Error())
		return
	}

	c.JSON(http.StatusOK, JobResponse{ID: id})
}

// Command PUT /api/v1/job/command
func (h *Handler) Command(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	switch req.Command {
	case "cancel":
		if err := h.manager.Cancel(); err != nil {
			errResp(c, http.StatusConflict, "Cancel failed", err.Error())
			return
		}
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: cancel")
		return
	}

	c.JSON(http.StatusOK, "OK")
}

// GetState GET /api/v1/job/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Status())
}

// GetReport GET /api/v1/job/report
func (h *Handler) GetReport(c *gin.Context) {
	lines := h.manager.Report()
	report := make([][2]string, len(lines))
	for i, line := range lines {
		report[i] = [2]string{
			line.Timestamp.Format("2006-01-02 15:04:05.000"),
			line.Data,
		}
	}
	c.JSON(http.StatusOK, gin.H{"log": report})
}

// Diagnostics GET /api/v1/diagnostics
func (h *Handler) Diagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, h.resolver.Probe(c.Request.Context()))
}
