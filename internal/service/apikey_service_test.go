package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/config"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/handler/dto"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/secrets"
	"github.com/skedlab/extractor-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newKeyFixture(t *testing.T) (*KeyService, *memstorage.APIKeyRepository, *memstorage.UsageLogRepository) {
	t.Helper()
	repo := memstorage.NewAPIKeyRepository()
	logs := memstorage.NewUsageLogRepository()
	provider := config.ProviderConfig{
		Name:              "gemini",
		DefaultDailyLimit: 28800,
	}
	svc := NewKeyService(repo, logs, secrets.Plaintext{}, provider, zap.NewNop())
	return svc, repo, logs
}

func TestRegisterAppliesDefaults(t *testing.T) {
	svc, repo, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{
		Secret:   "sk-test",
		Nickname: "  worker-1  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "worker-1", resp.Nickname)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 28800, stored.Quota.DailyLimit)
	assert.Equal(t, 0, stored.Quota.UsedToday)
	assert.Equal(t, "gemini", stored.Provider)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.Quota.ResetAt.After(time.Now().UTC()))
}

func TestRegisterHonorsExplicitLimit(t *testing.T) {
	svc, repo, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{
		Secret:     "sk-test",
		Nickname:   "worker-1",
		DailyLimit: 500,
	})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, 500, stored.Quota.DailyLimit)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	_, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Nickname: "worker-1"})
	assert.ErrorIs(t, err, ierr.ErrValidation)

	_, err = svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-test", Nickname: "   "})
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestRegisterDuplicateNickname(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	_, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "worker-1"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-2", Nickname: "worker-1"})
	assert.ErrorIs(t, err, ierr.ErrDuplicateNickname)
}

func TestNicknameFreedAfterDelete(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "worker-1"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), resp.ID))

	_, err = svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-2", Nickname: "worker-1"})
	assert.NoError(t, err)
}

func TestUpdateRequiresAField(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	err := svc.Update(context.Background(), uuid.New(), &dto.UpdateKeyRequest{})
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestUpdateUnknownKey(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	active := false
	err := svc.Update(context.Background(), uuid.New(), &dto.UpdateKeyRequest{IsActive: &active})
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}

func TestUpdateDeactivates(t *testing.T) {
	svc, repo, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "worker-1"})
	require.NoError(t, err)

	active := false
	require.NoError(t, svc.Update(context.Background(), resp.ID, &dto.UpdateKeyRequest{IsActive: &active}))

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestSoftDeleteTwice(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "worker-1"})
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(context.Background(), resp.ID))
	assert.ErrorIs(t, svc.SoftDelete(context.Background(), resp.ID), ierr.ErrNotFound)
}

func TestStatsViewOrdersByNickname(t *testing.T) {
	svc, _, logs := newKeyFixture(t)

	zebra, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "zebra"})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-2", Nickname: "alpha"})
	require.NoError(t, err)

	require.NoError(t, logs.Append(context.Background(), ptrEntry(logEntry(zebra.ID, "zebra", time.Now().UTC(), 4, 40, ""))))

	stats, err := svc.StatsView(context.Background())
	require.NoError(t, err)

	require.Len(t, stats, 2)
	assert.Equal(t, "alpha", stats[0].Nickname)
	assert.Equal(t, "zebra", stats[1].Nickname)
	assert.Equal(t, int64(4), stats[1].ExtractionCountToday)
	assert.Equal(t, int64(0), stats[0].ExtractionCountToday)
}

func TestStatsAggregatesPeriods(t *testing.T) {
	svc, repo, logs := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-1", Nickname: "worker-1"})
	require.NoError(t, err)

	now := time.Now().UTC()
	_, err = repo.ApplyUsage(context.Background(), resp.ID, apikey.UsageDelta{Requests: 2, Tokens: 200, CostCents: 4, Now: now})
	require.NoError(t, err)

	require.NoError(t, logs.Append(context.Background(), ptrEntry(logEntry(resp.ID, "worker-1", now, 2, 200, ""))))
	// Outside the 7-day period but inside all-time totals.
	require.NoError(t, logs.Append(context.Background(), ptrEntry(logEntry(resp.ID, "worker-1", now.AddDate(0, 0, -20), 9, 900, ""))))

	detail, err := svc.Stats(context.Background(), resp.ID, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, detail.UsedToday)
	assert.Equal(t, int64(2), detail.Period.Requests)
	assert.Equal(t, int64(200), detail.Period.Tokens)
	assert.Equal(t, 7, detail.PeriodDays)
	assert.Equal(t, int64(2), detail.AllTime.Requests)
	assert.Equal(t, int64(200), detail.AllTime.Tokens)
}

func TestRevealSecretRoundTrip(t *testing.T) {
	svc, _, _ := newKeyFixture(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterKeyRequest{Secret: "sk-secret", Nickname: "worker-1"})
	require.NoError(t, err)

	secret, err := svc.RevealSecret(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", secret)
}
