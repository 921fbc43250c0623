package apikey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2026, 3, 10, 2, 30, 0, 0, loc) // 2026-03-09 21:30 UTC

	got := StartOfDay(in)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestNextResetBoundary(t *testing.T) {
	in := time.Date(2026, 3, 9, 23, 59, 59, 0, time.UTC)

	got := NextResetBoundary(in)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestEffectiveSameDay(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 28800,
			UsedToday:  3,
			ResetAt:    NextResetBoundary(now),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, 3, state.UsedToday)
	assert.Equal(t, 28800, state.DailyLimit)
	assert.Equal(t, 28797, state.Remaining)
	assert.Equal(t, 0, state.PercentageUsed)
	assert.False(t, state.ResetPending)
}

func TestEffectiveStaleCounterReadsAsZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 100,
			UsedToday:  95,
			// Boundary from two days ago: the persisted counter is stale.
			ResetAt: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, 0, state.UsedToday)
	assert.Equal(t, 100, state.Remaining)
	assert.Equal(t, 0, state.PercentageUsed)
	assert.True(t, state.ResetPending)
}

func TestEffectiveBoundaryAtDayStartIsStale(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 100,
			UsedToday:  40,
			// A commit on 2026-03-09 leaves ResetAt at the following
			// midnight. By 08:00 that boundary has passed, so the
			// counter is stale.
			ResetAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, 0, state.UsedToday)
	assert.Equal(t, 100, state.Remaining)
	assert.True(t, state.ResetPending)
}

func TestEffectiveExhaustedKeyUsableNextDay(t *testing.T) {
	// Exhausted late on 2026-03-09; read at noon the next day the full
	// budget must be back.
	lastCommit := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 100,
			UsedToday:  100,
			ResetAt:    NextResetBoundary(lastCommit),
		},
	}

	state := Effective(key, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, 0, state.UsedToday)
	assert.Equal(t, 100, state.Remaining)
	assert.True(t, state.ResetPending)
}

func TestEffectiveOvershootClampsRemaining(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 100,
			UsedToday:  120,
			ResetAt:    NextResetBoundary(now),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, 120, state.UsedToday)
	assert.Equal(t, 0, state.Remaining)
	assert.Equal(t, 100, state.PercentageUsed)
}

func TestEffectiveFallbackLimit(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 0,
			UsedToday:  10,
			ResetAt:    NextResetBoundary(now),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, FallbackDailyLimit, state.DailyLimit)
	assert.Equal(t, 10, state.Remaining)
	assert.Equal(t, 50, state.PercentageUsed)
}

func TestEffectivePercentageRounds(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	key := &APIKey{
		Quota: Quota{
			DailyLimit: 3,
			UsedToday:  1,
			ResetAt:    NextResetBoundary(now),
		},
	}

	state := Effective(key, now)

	assert.Equal(t, 33, state.PercentageUsed)
}
