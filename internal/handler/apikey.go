package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/handler/dto"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/service"
	"go.uber.org/zap"
)

type APIKeyHandler struct {
	keys     *service.KeyService
	selector *service.SelectorService
	logger   *zap.Logger
}

func NewAPIKeyHandler(keys *service.KeyService, selector *service.SelectorService, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		keys:     keys,
		selector: selector,
		logger:   logger.Named("APIKeyHandler"),
	}
}

func (h *APIKeyHandler) Register(c *gin.Context) {
	var req dto.RegisterKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind register key request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	resp, err := h.keys.Register(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	includeDeleted := c.Query("include_deleted") == "true"

	keys, err := h.keys.List(c.Request.Context(), includeDeleted)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (h *APIKeyHandler) StatsView(c *gin.Context) {
	stats, err := h.keys.StatsView(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIKeyHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind update key request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	if err := h.keys.Update(c.Request.Context(), id, &req); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.keys.SoftDelete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Available returns the Selector's full ranked candidate list.
func (h *APIKeyHandler) Available(c *gin.Context) {
	candidates, err := h.selector.Candidates(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := make([]dto.CandidateResponse, len(candidates))
	for i, cand := range candidates {
		resp[i] = dto.CandidateResponse{
			ID:             cand.Key.ID,
			Nickname:       cand.Key.Nickname,
			Remaining:      cand.State.Remaining,
			UsedToday:      cand.State.UsedToday,
			DailyLimit:     cand.State.DailyLimit,
			PercentageUsed: cand.State.PercentageUsed,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *APIKeyHandler) Stats(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	periodDays := 30
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(fmt.Errorf("%w: days must be a positive integer", ierr.ErrValidation))
			return
		}
		periodDays = n
	}

	stats, err := h.keys.Stats(c.Request.Context(), id, periodDays)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *APIKeyHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid UUID format in path", zap.String("id_param", idStr))
		_ = c.Error(fmt.Errorf("%w: invalid api key id format", ierr.ErrValidation))
		return uuid.Nil, false
	}
	return id, true
}
