package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"go.uber.org/zap"
)

// PruneUsageLogsHandler trims usage log entries past the retention window.
// It only shrinks the analytics horizon; key quota state is never touched
// here, daily resets stay lazy inside the usage commit.
type PruneUsageLogsHandler struct {
	logs   usage.LogRepository
	logger *zap.Logger
}

func NewPruneUsageLogsHandler(logs usage.LogRepository, logger *zap.Logger) *PruneUsageLogsHandler {
	return &PruneUsageLogsHandler{
		logs:   logs,
		logger: logger.Named("PruneUsageLogsHandler"),
	}
}

func (h *PruneUsageLogsHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeUsageLogPrune {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	var p PruneUsageLogsPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		h.logger.Error("Failed to unmarshal prune payload", zap.Error(err), zap.ByteString("payload", t.Payload()))
		return fmt.Errorf("invalid payload: %v", err)
	}

	if p.RetentionDays <= 0 {
		h.logger.Warn("Non-positive retention window, skipping prune", zap.Int("retention_days", p.RetentionDays))
		return nil
	}

	cutoff := apikey.StartOfDay(time.Now().UTC()).AddDate(0, 0, -p.RetentionDays)

	removed, err := h.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		h.logger.Error("Failed to prune usage logs", zap.Time("cutoff", cutoff), zap.Error(err))
		return fmt.Errorf("pruning usage logs: %w", err)
	}

	h.logger.Info("Usage log prune finished",
		zap.Time("cutoff", cutoff),
		zap.Int64("removed_entries", removed),
	)
	return nil
}
