package api

import (
	"fmt"
	"net/http"

	"tomoseq/app"
	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/domain/peaks"
	"tomoseq/internal"
	"tomoseq/internal/errors"

	"github.com/gin-gonic/gin"
)

// PeakHandler runs the peak pipeline on a posted matrix.
type PeakHandler struct {
	service  *app.PeakService
	defaults peaks.Params
	logger   *internal.Logger
}

// NewPeakHandler creates a peak handler
func NewPeakHandler(service *app.PeakService, defaults peaks.Params, logger *internal.Logger) *PeakHandler {
	return &PeakHandler{service: service, defaults: defaults, logger: logger}
}

// PeakRequestBody is the JSON body of POST /api/v1/peaks. Counts are one
// row per gene in section order. Params fields left out keep the server
// defaults.
type PeakRequestBody struct {
	Genes    []string     `json:"genes"`
	Sections []string     `json:"sections"`
	Counts   [][]float64  `json:"counts"`
	Params   peaks.Params `json:"params"`
}

// HandleFindPeaks handles POST /api/v1/peaks
func (h *PeakHandler) HandleFindPeaks(c *gin.Context) {
	// rng_seed decodes through Params.Seed
	body := PeakRequestBody{Params: h.defaults.Clone()}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("malformed request body: %w", err)))
		return
	}

	matrix, err := expression.New(body.Genes, body.Sections, body.Counts)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.service.FindPeakGenes(c.Request.Context(), app.PeakRequest{
		Matrix: matrix,
		Params: body.Params,
		RunID:  core.NewRunID(),
	})
	if err != nil {
		h.logger.Warn("[API] peak run failed: %v", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
