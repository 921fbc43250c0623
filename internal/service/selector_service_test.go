package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func poolKey(nickname string, used, limit int, now time.Time) apikey.APIKey {
	return apikey.APIKey{
		ID:        uuid.New(),
		Nickname:  nickname,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		Quota: apikey.Quota{
			DailyLimit: limit,
			UsedToday:  used,
			ResetAt:    apikey.NextResetBoundary(now),
		},
	}
}

func TestRankOrdersByRemainingDescending(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	keys := []apikey.APIKey{
		poolKey("alpha", 90, 100, now),
		poolKey("beta", 10, 100, now),
		poolKey("gamma", 50, 100, now),
	}

	ranked := Rank(keys, now)

	require.Len(t, ranked, 3)
	assert.Equal(t, "beta", ranked[0].Key.Nickname)
	assert.Equal(t, "gamma", ranked[1].Key.Nickname)
	assert.Equal(t, "alpha", ranked[2].Key.Nickname)
}

func TestRankTieBreaksByNickname(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	keys := []apikey.APIKey{
		poolKey("zeta", 50, 100, now),
		poolKey("alpha", 50, 100, now),
	}

	ranked := Rank(keys, now)

	require.Len(t, ranked, 2)
	assert.Equal(t, "alpha", ranked[0].Key.Nickname)
	assert.Equal(t, "zeta", ranked[1].Key.Nickname)
}

func TestRankSkipsInactiveDeletedAndExhausted(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	inactive := poolKey("inactive", 0, 100, now)
	inactive.IsActive = false

	deleted := poolKey("deleted", 0, 100, now)
	deleted.IsDeleted = true

	exhausted := poolKey("exhausted", 100, 100, now)
	overshot := poolKey("overshot", 150, 100, now)
	usable := poolKey("usable", 99, 100, now)

	ranked := Rank([]apikey.APIKey{inactive, deleted, exhausted, overshot, usable}, now)

	require.Len(t, ranked, 1)
	assert.Equal(t, "usable", ranked[0].Key.Nickname)
	assert.Equal(t, 1, ranked[0].State.Remaining)
}

func TestRankExhaustedYesterdayIsUsableToday(t *testing.T) {
	yesterday := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	spent := poolKey("spent", 100, 100, yesterday)

	ranked := Rank([]apikey.APIKey{spent}, today)

	require.Len(t, ranked, 1)
	assert.Equal(t, 100, ranked[0].State.Remaining)
	assert.True(t, ranked[0].State.ResetPending)
}

func TestRankCountsStaleCounterAsFresh(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	stale := poolKey("stale", 100, 100, now)
	stale.Quota.ResetAt = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	ranked := Rank([]apikey.APIKey{stale}, now)

	require.Len(t, ranked, 1)
	assert.Equal(t, 100, ranked[0].State.Remaining)
	assert.True(t, ranked[0].State.ResetPending)
}

func TestCandidatesEmptyPool(t *testing.T) {
	repo := memstorage.NewAPIKeyRepository()
	selector := NewSelectorService(repo, zap.NewNop())

	_, err := selector.Candidates(context.Background())

	assert.ErrorIs(t, err, ierr.ErrNoAvailableKeys)
}

func TestCandidatesExhaustedPool(t *testing.T) {
	now := time.Now().UTC()
	repo := memstorage.NewAPIKeyRepository()
	exhausted := poolKey("spent", 100, 100, now)
	require.NoError(t, repo.Create(context.Background(), &exhausted))

	selector := NewSelectorService(repo, zap.NewNop())

	_, err := selector.Candidates(context.Background())

	assert.ErrorIs(t, err, ierr.ErrNoAvailableKeys)
}

func TestWithKeyUsesTopCandidate(t *testing.T) {
	now := time.Now().UTC()
	repo := memstorage.NewAPIKeyRepository()
	best := poolKey("best", 0, 100, now)
	worst := poolKey("worst", 90, 100, now)
	require.NoError(t, repo.Create(context.Background(), &best))
	require.NoError(t, repo.Create(context.Background(), &worst))

	selector := NewSelectorService(repo, zap.NewNop())

	var picked string
	err := selector.WithKey(context.Background(), func(ctx context.Context, c Candidate) error {
		picked = c.Key.Nickname
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "best", picked)
}

func TestWithKeyRetriesAfterQuotaRace(t *testing.T) {
	now := time.Now().UTC()
	repo := memstorage.NewAPIKeyRepository()
	first := poolKey("first", 0, 100, now)
	second := poolKey("second", 50, 100, now)
	require.NoError(t, repo.Create(context.Background(), &first))
	require.NoError(t, repo.Create(context.Background(), &second))

	selector := NewSelectorService(repo, zap.NewNop())

	var attempts []string
	err := selector.WithKey(context.Background(), func(ctx context.Context, c Candidate) error {
		attempts = append(attempts, c.Key.Nickname)
		if c.Key.Nickname == "first" {
			// Simulate a racing commit exhausting the key mid-flight;
			// drain it so re-selection picks the other key.
			_, applyErr := repo.ApplyUsage(ctx, c.Key.ID, apikey.UsageDelta{Requests: 100, Now: now})
			require.NoError(t, applyErr)
			return ierr.ErrQuotaExceeded
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, attempts)
}

func TestWithKeyRetriesBounded(t *testing.T) {
	now := time.Now().UTC()
	repo := memstorage.NewAPIKeyRepository()
	a := poolKey("a", 0, 100, now)
	b := poolKey("b", 0, 100, now)
	require.NoError(t, repo.Create(context.Background(), &a))
	require.NoError(t, repo.Create(context.Background(), &b))

	selector := NewSelectorService(repo, zap.NewNop())

	calls := 0
	err := selector.WithKey(context.Background(), func(ctx context.Context, c Candidate) error {
		calls++
		return ierr.ErrQuotaExceeded
	})

	assert.ErrorIs(t, err, ierr.ErrNoAvailableKeys)
	assert.Equal(t, 2, calls)
}

func TestWithKeyPropagatesOtherErrors(t *testing.T) {
	now := time.Now().UTC()
	repo := memstorage.NewAPIKeyRepository()
	key := poolKey("only", 0, 100, now)
	require.NoError(t, repo.Create(context.Background(), &key))

	selector := NewSelectorService(repo, zap.NewNop())

	boom := errors.New("provider timeout")
	err := selector.WithKey(context.Background(), func(ctx context.Context, c Candidate) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}
