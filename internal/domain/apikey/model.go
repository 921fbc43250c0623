package apikey

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultDailyLimit is assigned at registration when no explicit limit is
	// given. Sized for the provider free tier (20 requests/min over a day).
	DefaultDailyLimit = 28800

	// FallbackDailyLimit guards quota arithmetic against legacy rows whose
	// daily_limit was never set.
	FallbackDailyLimit = 20
)

// Quota is a key's daily request budget. ResetAt always points at the next
// UTC day boundary strictly after the last applied reset; UsedToday may
// transiently overshoot DailyLimit under concurrent commits.
type Quota struct {
	DailyLimit int       `db:"daily_limit"`
	UsedToday  int       `db:"used_today"`
	ResetAt    time.Time `db:"reset_at"`
}

// UsageTotals are lifetime counters, only ever incremented.
type UsageTotals struct {
	TotalRequests      int64 `db:"total_requests"`
	TotalTokensUsed    int64 `db:"total_tokens_used"`
	EstimatedCostCents int64 `db:"estimated_cost_cents"`
}

// APIKey is one rate-limited credential against the external provider.
// Keys are never physically removed; deletion flips IsDeleted and IsActive.
type APIKey struct {
	ID        uuid.UUID   `db:"id"`
	Secret    []byte      `db:"secret"`
	Nickname  string      `db:"nickname"`
	Provider  string      `db:"provider"`
	IsActive  bool        `db:"is_active"`
	IsDeleted bool        `db:"is_deleted"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
	LastUsed  *time.Time  `db:"last_used"`
	Quota     Quota       `db:"-"`
	Totals    UsageTotals `db:"-"`
}
