package usage

import (
	"time"

	"github.com/google/uuid"
)

// SchoolUnknown buckets log entries recorded without a school name.
const SchoolUnknown = "Unknown"

// LogEntry is an immutable record of one completed request attempt against
// the provider. APIKeyNickname is snapshotted at write time so historical
// reports stay stable across later renames and deletions.
type LogEntry struct {
	ID                 uuid.UUID `db:"id"`
	APIKeyID           uuid.UUID `db:"api_key_id"`
	APIKeyNickname     string    `db:"api_key_nickname"`
	Date               time.Time `db:"date"`
	RequestsCount      int       `db:"requests_count"`
	TokensUsed         int64     `db:"tokens_used"`
	EstimatedCostCents int64     `db:"estimated_cost_cents"`
	SchoolName         string    `db:"school_name"`
	Success            bool      `db:"success"`
}

// TokenAnalyticsRecord captures one completed extraction for the token
// efficiency report. It is independent of key quota accounting.
type TokenAnalyticsRecord struct {
	ID               uuid.UUID `db:"id"`
	OwnerID          uuid.UUID `db:"owner_id"`
	Filename         string    `db:"filename"`
	TokensUsed       int64     `db:"tokens_used"`
	CoursesExtracted int       `db:"courses_extracted"`
	TotalPages       int       `db:"total_pages"`
	APIUsed          string    `db:"api_used"`
	CreatedAt        time.Time `db:"created_at"`
}
