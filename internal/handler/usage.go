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

type UsageHandler struct {
	usage     *service.UsageService
	analytics *service.AnalyticsService
	logger    *zap.Logger
}

func NewUsageHandler(usageService *service.UsageService, analytics *service.AnalyticsService, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usage:     usageService,
		analytics: analytics,
		logger:    logger.Named("UsageHandler"),
	}
}

// Record is the extraction pipeline's callback for one completed attempt.
// A 429 here means the commit stood but the key is now past its daily limit.
func (h *UsageHandler) Record(c *gin.Context) {
	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind record usage request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	requests := req.RequestsCount
	if requests == 0 {
		requests = 1
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}

	err := h.usage.Record(c.Request.Context(), service.RecordInput{
		APIKeyID:   req.APIKeyID,
		Requests:   requests,
		Tokens:     req.TokensUsed,
		CostCents:  req.CostCents,
		SchoolName: req.SchoolName,
		Success:    success,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *UsageHandler) Report(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			_ = c.Error(fmt.Errorf("%w: days must be a positive integer", ierr.ErrValidation))
			return
		}
		days = n
	}

	var keyID *uuid.UUID
	if raw := c.Query("key_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Error(fmt.Errorf("%w: invalid key_id filter", ierr.ErrValidation))
			return
		}
		keyID = &id
	}

	report, err := h.analytics.UsageReport(c.Request.Context(), days, keyID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}
