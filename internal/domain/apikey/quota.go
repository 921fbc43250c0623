package apikey

import (
	"math"
	"time"
)

// EffectiveState is a key's quota as of a given instant, after accounting
// for a pending-but-unpersisted lazy daily reset. Computing it performs no
// writes; the persisted counters are only zeroed inside the store's atomic
// usage commit.
type EffectiveState struct {
	UsedToday      int  `json:"used_today"`
	DailyLimit     int  `json:"daily_limit"`
	Remaining      int  `json:"remaining"`
	PercentageUsed int  `json:"percentage_used"`
	ResetPending   bool `json:"-"`
}

// StartOfDay truncates t to the current UTC day boundary.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextResetBoundary is the UTC day boundary following t.
func NextResetBoundary(t time.Time) time.Time {
	return StartOfDay(t).Add(24 * time.Hour)
}

// Effective computes the key's quota state at now. A ResetAt at or before the
// start of the current UTC day means the boundary has passed, so the persisted
// UsedToday is stale and reads as zero. Remaining is clamped at zero
// regardless of overshoot and PercentageUsed is clamped to [0,100] for
// display.
func Effective(k *APIKey, now time.Time) EffectiveState {
	limit := k.Quota.DailyLimit
	if limit <= 0 {
		limit = FallbackDailyLimit
	}

	used := k.Quota.UsedToday
	resetPending := !k.Quota.ResetAt.After(StartOfDay(now))
	if resetPending {
		used = 0
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	pct := int(math.Round(float64(used) / float64(limit) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	return EffectiveState{
		UsedToday:      used,
		DailyLimit:     limit,
		Remaining:      remaining,
		PercentageUsed: pct,
		ResetPending:   resetPending,
	}
}
