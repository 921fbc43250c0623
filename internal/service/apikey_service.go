package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/config"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/handler/dto"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/secrets"
	"go.uber.org/zap"
)

// KeyService is the registry of provider credentials: registration, listing,
// administrative updates and soft deletion. Quota consumption lives in
// UsageService; this service never touches the counters.
type KeyService struct {
	repo     apikey.Repository
	logs     usage.LogRepository
	cipher   secrets.Cipher
	provider config.ProviderConfig
	logger   *zap.Logger
}

func NewKeyService(repo apikey.Repository, logs usage.LogRepository, cipher secrets.Cipher, provider config.ProviderConfig, logger *zap.Logger) *KeyService {
	return &KeyService{
		repo:     repo,
		logs:     logs,
		cipher:   cipher,
		provider: provider,
		logger:   logger.Named("KeyService"),
	}
}

func (s *KeyService) Register(ctx context.Context, req *dto.RegisterKeyRequest) (*dto.RegisterKeyResponse, error) {
	nickname := strings.TrimSpace(req.Nickname)
	if req.Secret == "" || nickname == "" {
		return nil, fmt.Errorf("%w: secret and nickname are required", ierr.ErrValidation)
	}

	limit := req.DailyLimit
	if limit <= 0 {
		limit = s.provider.DefaultDailyLimit
	}
	if limit <= 0 {
		limit = apikey.DefaultDailyLimit
	}

	provider := req.Provider
	if provider == "" {
		provider = s.provider.Name
	}

	sealed, err := s.cipher.Encrypt(req.Secret)
	if err != nil {
		s.logger.Error("Failed to seal key secret", zap.Error(err))
		return nil, fmt.Errorf("%w: sealing secret", ierr.ErrInternalServer)
	}

	now := time.Now().UTC()
	key := &apikey.APIKey{
		ID:        uuid.New(),
		Secret:    sealed,
		Nickname:  nickname,
		Provider:  provider,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Quota: apikey.Quota{
			DailyLimit: limit,
			UsedToday:  0,
			ResetAt:    apikey.NextResetBoundary(now),
		},
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("API key registered",
		zap.String("id", key.ID.String()),
		zap.String("nickname", key.Nickname),
		zap.Int("daily_limit", limit),
	)

	return &dto.RegisterKeyResponse{
		ID:        key.ID,
		Nickname:  key.Nickname,
		CreatedAt: key.CreatedAt,
	}, nil
}

func (s *KeyService) List(ctx context.Context, includeDeleted bool) ([]dto.KeyResponse, error) {
	keys, err := s.repo.List(ctx, includeDeleted)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.KeyResponse, len(keys))
	for i, key := range keys {
		responses[i] = dto.KeyResponse{
			ID:         key.ID,
			Nickname:   key.Nickname,
			Provider:   key.Provider,
			IsActive:   key.IsActive,
			IsDeleted:  key.IsDeleted,
			CreatedAt:  key.CreatedAt,
			UpdatedAt:  key.UpdatedAt,
			LastUsed:   key.LastUsed,
			DailyLimit: key.Quota.DailyLimit,
		}
	}
	return responses, nil
}

// StatsView attaches effective quota state and today's extraction counts to
// every live key, ordered by nickname for the dashboard.
func (s *KeyService) StatsView(ctx context.Context) ([]dto.KeyStatsResponse, error) {
	now := time.Now().UTC()

	keys, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	counts, err := s.logs.CountByKeySince(ctx, apikey.StartOfDay(now))
	if err != nil {
		return nil, err
	}

	stats := make([]dto.KeyStatsResponse, len(keys))
	for i, key := range keys {
		state := apikey.Effective(&key, now)
		stats[i] = dto.KeyStatsResponse{
			ID:                   key.ID,
			Nickname:             key.Nickname,
			IsActive:             key.IsActive,
			UsedToday:            state.UsedToday,
			DailyLimit:           state.DailyLimit,
			Remaining:            state.Remaining,
			PercentageUsed:       state.PercentageUsed,
			LastUsed:             key.LastUsed,
			ExtractionCountToday: counts[key.ID],
		}
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Nickname < stats[j].Nickname
	})
	return stats, nil
}

func (s *KeyService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateKeyRequest) error {
	if req.Nickname == nil && req.IsActive == nil {
		return fmt.Errorf("%w: no fields to update", ierr.ErrValidation)
	}

	upd := apikey.FieldUpdate{IsActive: req.IsActive}
	if req.Nickname != nil {
		trimmed := strings.TrimSpace(*req.Nickname)
		if trimmed == "" {
			return fmt.Errorf("%w: nickname must not be empty", ierr.ErrValidation)
		}
		upd.Nickname = &trimmed
	}

	if err := s.repo.Update(ctx, id, upd); err != nil {
		return err
	}

	s.logger.Info("API key updated", zap.String("id", id.String()))
	return nil
}

func (s *KeyService) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("API key soft deleted", zap.String("id", id.String()))
	return nil
}

// Stats builds the extended today / this-period / all-time usage view for a
// single key.
func (s *KeyService) Stats(ctx context.Context, id uuid.UUID, periodDays int) (*dto.KeyUsageDetailResponse, error) {
	if periodDays <= 0 {
		periodDays = 30
	}

	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := apikey.Effective(key, now)

	start := apikey.StartOfDay(now).AddDate(0, 0, -(periodDays - 1))
	entries, err := s.logs.ListWindow(ctx, start, now, &id)
	if err != nil {
		return nil, err
	}

	var period dto.PeriodUsage
	for _, e := range entries {
		period.Requests += int64(e.RequestsCount)
		period.Tokens += e.TokensUsed
		period.CostCents += e.EstimatedCostCents
	}

	return &dto.KeyUsageDetailResponse{
		ID:         key.ID,
		Nickname:   key.Nickname,
		UsedToday:  state.UsedToday,
		Remaining:  state.Remaining,
		DailyLimit: state.DailyLimit,
		LastUsed:   key.LastUsed,
		Period:     period,
		PeriodDays: periodDays,
		AllTime: dto.PeriodUsage{
			Requests:  key.Totals.TotalRequests,
			Tokens:    key.Totals.TotalTokensUsed,
			CostCents: key.Totals.EstimatedCostCents,
		},
	}, nil
}

// RevealSecret unseals a key's secret for use against the provider.
func (s *KeyService) RevealSecret(ctx context.Context, id uuid.UUID) (string, error) {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	secret, err := s.cipher.Decrypt(key.Secret)
	if err != nil {
		s.logger.Error("Failed to unseal key secret", zap.String("id", id.String()), zap.Error(err))
		return "", fmt.Errorf("%w: unsealing secret", ierr.ErrInternalServer)
	}
	return secret, nil
}
