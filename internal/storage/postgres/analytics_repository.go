package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skedlab/extractor-api/internal/domain/usage"
	"github.com/skedlab/extractor-api/internal/ierr"
	"go.uber.org/zap"
)

type TokenAnalyticsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTokenAnalyticsRepository(db *pgxpool.Pool, logger *zap.Logger) *TokenAnalyticsRepository {
	return &TokenAnalyticsRepository{
		db:     db,
		logger: logger.Named("TokenAnalyticsRepository"),
	}
}

var _ usage.AnalyticsRepository = (*TokenAnalyticsRepository)(nil)

func (r *TokenAnalyticsRepository) Insert(ctx context.Context, rec *usage.TokenAnalyticsRecord) error {
	query := `
		INSERT INTO token_analytics (id, owner_id, filename, tokens_used,
			courses_extracted, total_pages, api_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.OwnerID, rec.Filename, rec.TokensUsed,
		rec.CoursesExtracted, rec.TotalPages, rec.APIUsed, rec.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert token analytics record", zap.Error(err))
		return fmt.Errorf("%w: inserting token analytics record: %v", ierr.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *TokenAnalyticsRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]usage.TokenAnalyticsRecord, error) {
	query := `
		SELECT id, owner_id, filename, tokens_used, courses_extracted, total_pages, api_used, created_at
		FROM token_analytics
		WHERE owner_id = $1
	`
	return r.queryRecords(ctx, query, ownerID)
}

func (r *TokenAnalyticsRepository) RecentByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]usage.TokenAnalyticsRecord, error) {
	query := `
		SELECT id, owner_id, filename, tokens_used, courses_extracted, total_pages, api_used, created_at
		FROM token_analytics
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.queryRecords(ctx, query, ownerID, limit)
}

func (r *TokenAnalyticsRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]usage.TokenAnalyticsRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to query token analytics records", zap.Error(err))
		return nil, fmt.Errorf("%w: querying token analytics: %v", ierr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var recs []usage.TokenAnalyticsRecord
	for rows.Next() {
		var rec usage.TokenAnalyticsRecord
		err := rows.Scan(
			&rec.ID, &rec.OwnerID, &rec.Filename, &rec.TokensUsed,
			&rec.CoursesExtracted, &rec.TotalPages, &rec.APIUsed, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning token analytics row: %v", ierr.ErrStoreUnavailable, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating token analytics: %v", ierr.ErrStoreUnavailable, err)
	}
	return recs, nil
}
