package api

import (
	"net/http"
	"strconv"

	"tomoseq/domain/core"
	"tomoseq/domain/run"
	"tomoseq/internal/errors"
	"tomoseq/internal/report"
	"tomoseq/ports"

	"github.com/gin-gonic/gin"
)

// RunHandler serves stored runs.
type RunHandler struct {
	repository ports.PeakRunRepository
}

// NewRunHandler creates a run handler; repository may be nil.
func NewRunHandler(repository ports.PeakRunRepository) *RunHandler {
	return &RunHandler{repository: repository}
}

// HandleGetRun handles GET /api/v1/runs/:id
func (h *RunHandler) HandleGetRun(c *gin.Context) {
	rec, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleRunReport handles GET /api/v1/runs/:id/report
func (h *RunHandler) HandleRunReport(c *gin.Context) {
	rec, ok := h.loadRun(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", report.HTML(rec))
}

// HandleListRuns handles GET /api/v1/runs?limit=N
func (h *RunHandler) HandleListRuns(c *gin.Context) {
	if !h.requireRepository(c) {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, errors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	summaries, err := h.repository.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": summaries})
}

func (h *RunHandler) loadRun(c *gin.Context) (*run.Record, bool) {
	if !h.requireRepository(c) {
		return nil, false
	}
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		writeError(c, errors.InvalidInput(err.Error()))
		return nil, false
	}
	rec, err := h.repository.GetRun(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return rec, true
}

func (h *RunHandler) requireRepository(c *gin.Context) bool {
	if h.repository == nil {
		writeError(c, errors.New(codeNotConfigured, "run storage is not configured"))
		return false
	}
	return true
}
