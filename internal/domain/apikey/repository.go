package apikey

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FieldUpdate carries the administrative fields that may change after
// registration. Nil pointers leave the stored value untouched; set fields are
// applied independently, last writer wins. Quota fields are deliberately
// absent: only ApplyUsage may touch those.
type FieldUpdate struct {
	Nickname *string
	IsActive *bool
}

// UsageDelta is one completed request attempt to fold into a key's counters.
// All increments are commutative adds.
type UsageDelta struct {
	Requests  int
	Tokens    int64
	CostCents int64
	Now       time.Time
}

// UsageResult is the post-commit quota snapshot returned by ApplyUsage so the
// caller can detect overshoot without a second read.
type UsageResult struct {
	UsedToday  int
	DailyLimit int
}

// Repository is the durable key store. ApplyUsage is the store's single
// atomic conditional-update primitive: in one step it applies the lazy day
// reset when the current UTC day start has reached ResetAt and then the
// increments, so no reader ever observes a half-reset record.
type Repository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*APIKey, error)
	List(ctx context.Context, includeDeleted bool) ([]APIKey, error)
	Update(ctx context.Context, id uuid.UUID, upd FieldUpdate) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ApplyUsage(ctx context.Context, id uuid.UUID, delta UsageDelta) (UsageResult, error)
}
