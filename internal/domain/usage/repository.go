package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LogRepository is the append-only usage log. Entries are never mutated.
type LogRepository interface {
	Append(ctx context.Context, entry *LogEntry) error
	// ListWindow returns entries with Date in [start, end), optionally
	// filtered to one key, in no guaranteed order.
	ListWindow(ctx context.Context, start, end time.Time, keyID *uuid.UUID) ([]LogEntry, error)
	// CountByKeySince sums requests_count per key for entries at or after
	// since (the store's grouping primitive).
	CountByKeySince(ctx context.Context, since time.Time) (map[uuid.UUID]int64, error)
	// DeleteOlderThan removes entries dated before cutoff and reports how
	// many went. Used only by retention pruning, never by quota logic.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AnalyticsRepository stores per-extraction token records.
type AnalyticsRepository interface {
	Insert(ctx context.Context, rec *TokenAnalyticsRecord) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]TokenAnalyticsRecord, error)
	RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]TokenAnalyticsRecord, error)
}
