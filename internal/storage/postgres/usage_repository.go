package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/ierr"
	"go.uber.org/zap"
)

type UsageLogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUsageLogRepository(db *pgxpool.Pool, logger *zap.Logger) *UsageLogRepository {
	return &UsageLogRepository{
		db:     db,
		logger: logger.Named("UsageLogRepository"),
	}
}

var _ usage.LogRepository = (*UsageLogRepository)(nil)

func (r *UsageLogRepository) Append(ctx context.Context, entry *usage.LogEntry) error {
	query := `
		INSERT INTO usage_logs (id, api_key_id, api_key_nickname, date,
			requests_count, tokens_used, estimated_cost_cents, school_name, success)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.APIKeyID, entry.APIKeyNickname, entry.Date,
		entry.RequestsCount, entry.TokensUsed, entry.EstimatedCostCents,
		entry.SchoolName, entry.Success,
	)
	if err != nil {
		r.logger.Error("Failed to append usage log entry", zap.Error(err))
		return fmt.Errorf("%w: appending usage log: %v", ierr.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *UsageLogRepository) ListWindow(ctx context.Context, start, end time.Time, keyID *uuid.UUID) ([]usage.LogEntry, error) {
	query := `
		SELECT id, api_key_id, api_key_nickname, date,
			requests_count, tokens_used, estimated_cost_cents, school_name, success
		FROM usage_logs
		WHERE date >= $1 AND date < $2
	`
	args := []interface{}{start, end}
	if keyID != nil {
		query += ` AND api_key_id = $3`
		args = append(args, *keyID)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query usage log window", zap.Error(err))
		return nil, fmt.Errorf("%w: listing usage logs: %v", ierr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []usage.LogEntry
	for rows.Next() {
		var e usage.LogEntry
		err := rows.Scan(
			&e.ID, &e.APIKeyID, &e.APIKeyNickname, &e.Date,
			&e.RequestsCount, &e.TokensUsed, &e.EstimatedCostCents,
			&e.SchoolName, &e.Success,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning usage log row: %v", ierr.ErrStoreUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating usage logs: %v", ierr.ErrStoreUnavailable, err)
	}
	return entries, nil
}

func (r *UsageLogRepository) CountByKeySince(ctx context.Context, since time.Time) (map[uuid.UUID]int64, error) {
	query := `
		SELECT api_key_id, COALESCE(SUM(requests_count), 0)
		FROM usage_logs
		WHERE date >= $1
		GROUP BY api_key_id
	`
	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		r.logger.Error("Failed to group usage counts by key", zap.Error(err))
		return nil, fmt.Errorf("%w: grouping usage counts: %v", ierr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("%w: scanning usage count row: %v", ierr.ErrStoreUnavailable, err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating usage counts: %v", ierr.ErrStoreUnavailable, err)
	}
	return counts, nil
}

func (r *UsageLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM usage_logs WHERE date < $1`, cutoff)
	if err != nil {
		r.logger.Error("Failed to prune usage logs", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, fmt.Errorf("%w: pruning usage logs: %v", ierr.ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
