package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/usage"
)

type UsageLogRepository struct {
	mu      sync.RWMutex
	entries []usage.LogEntry
}

func NewUsageLogRepository() *UsageLogRepository {
	return &UsageLogRepository{}
}

var _ usage.LogRepository = (*UsageLogRepository)(nil)

func (r *UsageLogRepository) Append(ctx context.Context, entry *usage.LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *UsageLogRepository) ListWindow(ctx context.Context, start, end time.Time, keyID *uuid.UUID) ([]usage.LogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []usage.LogEntry
	for _, e := range r.entries {
		if e.Date.Before(start) || !e.Date.Before(end) {
			continue
		}
		if keyID != nil && e.APIKeyID != *keyID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *UsageLogRepository) CountByKeySince(ctx context.Context, since time.Time) (map[uuid.UUID]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[uuid.UUID]int64)
	for _, e := range r.entries {
		if e.Date.Before(since) {
			continue
		}
		counts[e.APIKeyID] += int64(e.RequestsCount)
	}
	return counts, nil
}

func (r *UsageLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var removed int64
	for _, e := range r.entries {
		if e.Date.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return removed, nil
}

type TokenAnalyticsRepository struct {
	mu      sync.RWMutex
	records []usage.TokenAnalyticsRecord
}

func NewTokenAnalyticsRepository() *TokenAnalyticsRepository {
	return &TokenAnalyticsRepository{}
}

var _ usage.AnalyticsRepository = (*TokenAnalyticsRepository)(nil)

func (r *TokenAnalyticsRepository) Insert(ctx context.Context, rec *usage.TokenAnalyticsRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *rec)
	return nil
}

func (r *TokenAnalyticsRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]usage.TokenAnalyticsRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []usage.TokenAnalyticsRecord
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *TokenAnalyticsRepository) RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]usage.TokenAnalyticsRecord, error) {
	out, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
