package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUsageFixture(t *testing.T, key *apikey.APIKey) (*UsageService, *memstorage.APIKeyRepository, *memstorage.UsageLogRepository) {
	t.Helper()
	keys := memstorage.NewAPIKeyRepository()
	logs := memstorage.NewUsageLogRepository()
	if key != nil {
		require.NoError(t, keys.Create(context.Background(), key))
	}
	return NewUsageService(keys, logs, zap.NewNop()), keys, logs
}

func TestRecordAccumulatesWithinDay(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	key := poolKey("worker-1", 0, 28800, now)
	svc, keys, logs := newUsageFixture(t, &key)

	for i := 0; i < 3; i++ {
		err := svc.Record(context.Background(), RecordInput{
			APIKeyID: key.ID,
			Requests: 1,
			Tokens:   500,
			Success:  true,
			At:       now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	stored, err := keys.GetByID(context.Background(), key.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quota.UsedToday)
	assert.Equal(t, int64(3), stored.Totals.TotalRequests)
	assert.Equal(t, int64(1500), stored.Totals.TotalTokensUsed)

	state := apikey.Effective(stored, now)
	assert.Equal(t, 28797, state.Remaining)
	assert.Equal(t, 0, state.PercentageUsed)

	entries, err := logs.ListWindow(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecordResetsStaleCounter(t *testing.T) {
	yesterday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	key := poolKey("worker-1", 95, 100, yesterday)
	svc, keys, _ := newUsageFixture(t, &key)

	err := svc.Record(context.Background(), RecordInput{
		APIKeyID: key.ID,
		Requests: 1,
		Success:  true,
		At:       today,
	})
	require.NoError(t, err)

	stored, err := keys.GetByID(context.Background(), key.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Quota.UsedToday)
	assert.Equal(t, apikey.NextResetBoundary(today), stored.Quota.ResetAt)
	// Lifetime totals survive the day rollover.
	assert.Equal(t, int64(1), stored.Totals.TotalRequests)
}

func TestRecordConcurrentCommitsNetExactly(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	key := poolKey("worker-1", 0, 28800, now)
	svc, keys, logs := newUsageFixture(t, &key)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			err := svc.Record(context.Background(), RecordInput{
				APIKeyID: key.ID,
				Requests: 1,
				Success:  true,
				At:       now,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := keys.GetByID(context.Background(), key.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.Quota.UsedToday)

	entries, err := logs.ListWindow(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), nil)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestRecordOvershootStandsAndSignals(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	key := poolKey("worker-1", 100, 100, now)
	svc, keys, logs := newUsageFixture(t, &key)

	err := svc.Record(context.Background(), RecordInput{
		APIKeyID: key.ID,
		Requests: 1,
		Success:  true,
		At:       now,
	})
	assert.ErrorIs(t, err, ierr.ErrQuotaExceeded)

	// The commit stood: both the counter and the log entry are in place.
	stored, getErr := keys.GetByID(context.Background(), key.ID)
	require.NoError(t, getErr)
	assert.Equal(t, 101, stored.Quota.UsedToday)

	entries, listErr := logs.ListWindow(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), nil)
	require.NoError(t, listErr)
	assert.Len(t, entries, 1)
}

func TestRecordSnapshotsNicknameAndDefaultsSchool(t *testing.T) {
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	key := poolKey("worker-1", 0, 100, now)
	svc, _, logs := newUsageFixture(t, &key)

	err := svc.Record(context.Background(), RecordInput{
		APIKeyID: key.ID,
		Requests: 1,
		Success:  true,
		At:       now,
	})
	require.NoError(t, err)

	entries, err := logs.ListWindow(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "worker-1", entries[0].APIKeyNickname)
	assert.Equal(t, usage.SchoolUnknown, entries[0].SchoolName)
}

func TestRecordValidation(t *testing.T) {
	svc, _, _ := newUsageFixture(t, nil)

	err := svc.Record(context.Background(), RecordInput{Requests: 1})
	assert.ErrorIs(t, err, ierr.ErrValidation)

	err = svc.Record(context.Background(), RecordInput{APIKeyID: uuid.New(), Requests: 0})
	assert.ErrorIs(t, err, ierr.ErrValidation)
}

func TestRecordUnknownKey(t *testing.T) {
	svc, _, _ := newUsageFixture(t, nil)

	err := svc.Record(context.Background(), RecordInput{
		APIKeyID: uuid.New(),
		Requests: 1,
	})
	assert.ErrorIs(t, err, ierr.ErrNotFound)
}
