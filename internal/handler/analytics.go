package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/handler/dto"
	"github.com/skedlab/extractor-api/internal/handler/middleware"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/service"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *zap.Logger
}

func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger.Named("AnalyticsHandler"),
	}
}

func (h *AnalyticsHandler) TokenReport(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	report, err := h.analytics.TokenReport(c.Request.Context(), ownerID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalyticsHandler) IngestExtraction(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var req dto.IngestExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind extraction record request", zap.Error(err))
		_ = c.Error(fmt.Errorf("%w: %v", ierr.ErrValidation, err))
		return
	}

	if err := h.analytics.IngestExtraction(c.Request.Context(), ownerID, &req); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *AnalyticsHandler) ownerID(c *gin.Context) (uuid.UUID, bool) {
	claims := middleware.GetUserClaims(c)
	if claims == nil {
		_ = c.Error(fmt.Errorf("%w: missing authentication claims", ierr.ErrUnauthorized))
		return uuid.Nil, false
	}
	ownerID, err := claims.OwnerID()
	if err != nil {
		_ = c.Error(err)
		return uuid.Nil, false
	}
	return ownerID, true
}
