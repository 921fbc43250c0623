package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/metrics"
	"go.uber.org/zap"
)

// RecordInput is one completed request attempt reported by the extraction
// pipeline. A zero At means "now".
type RecordInput struct {
	APIKeyID   uuid.UUID
	Requests   int
	Tokens     int64
	CostCents  int64
	SchoolName string
	Success    bool
	At         time.Time
}

// UsageService commits completed attempts: it appends the immutable usage
// log entry and folds the increments into the key through the store's single
// atomic conditional update. It is the only writer of quota fields.
type UsageService struct {
	keys   apikey.Repository
	logs   usage.LogRepository
	logger *zap.Logger
}

func NewUsageService(keys apikey.Repository, logs usage.LogRepository, logger *zap.Logger) *UsageService {
	return &UsageService{
		keys:   keys,
		logs:   logs,
		logger: logger.Named("UsageService"),
	}
}

// Record commits one attempt. A returned ErrQuotaExceeded means the write
// itself stood (soft cap) and the key is now past its daily limit; callers
// holding a Selector candidate treat it as a race signal and re-select.
func (s *UsageService) Record(ctx context.Context, in RecordInput) error {
	if in.APIKeyID == uuid.Nil {
		return fmt.Errorf("%w: api key id is required", ierr.ErrValidation)
	}
	if in.Requests <= 0 {
		return fmt.Errorf("%w: requests count must be positive", ierr.ErrValidation)
	}

	at := in.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	key, err := s.keys.GetByID(ctx, in.APIKeyID)
	if err != nil {
		return err
	}

	school := in.SchoolName
	if school == "" {
		school = usage.SchoolUnknown
	}

	entry := &usage.LogEntry{
		ID:                 uuid.New(),
		APIKeyID:           key.ID,
		APIKeyNickname:     key.Nickname,
		Date:               at,
		RequestsCount:      in.Requests,
		TokensUsed:         in.Tokens,
		EstimatedCostCents: in.CostCents,
		SchoolName:         school,
		Success:            in.Success,
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		return err
	}

	res, err := s.keys.ApplyUsage(ctx, key.ID, apikey.UsageDelta{
		Requests:  in.Requests,
		Tokens:    in.Tokens,
		CostCents: in.CostCents,
		Now:       at,
	})
	if err != nil {
		return err
	}

	metrics.UsageCommits.WithLabelValues(strconv.FormatBool(in.Success)).Inc()

	limit := res.DailyLimit
	if limit <= 0 {
		limit = apikey.FallbackDailyLimit
	}
	if res.UsedToday > limit {
		metrics.QuotaExceededSignals.Inc()
		s.logger.Warn("Key daily quota exceeded",
			zap.String("key_id", key.ID.String()),
			zap.String("nickname", key.Nickname),
			zap.Int("used_today", res.UsedToday),
			zap.Int("daily_limit", limit),
		)
		return fmt.Errorf("%w: key %s at %d of %d", ierr.ErrQuotaExceeded, key.Nickname, res.UsedToday, limit)
	}

	s.logger.Debug("Usage committed",
		zap.String("key_id", key.ID.String()),
		zap.Int("used_today", res.UsedToday),
	)
	return nil
}
