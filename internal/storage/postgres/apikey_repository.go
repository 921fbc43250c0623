package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/ierr"
	"go.uber.org/zap"
)

type APIKeyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAPIKeyRepository(db *pgxpool.Pool, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

const apiKeyColumns = `id, secret, nickname, provider, is_active, is_deleted,
	created_at, updated_at, last_used,
	daily_limit, used_today, reset_at,
	total_requests, total_tokens_used, estimated_cost_cents`

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) error {
	query := `
		INSERT INTO api_keys (id, secret, nickname, provider, is_active, is_deleted,
			created_at, updated_at, daily_limit, used_today, reset_at,
			total_requests, total_tokens_used, estimated_cost_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		key.ID, key.Secret, key.Nickname, key.Provider, key.IsActive, key.IsDeleted,
		key.CreatedAt, key.UpdatedAt,
		key.Quota.DailyLimit, key.Quota.UsedToday, key.Quota.ResetAt,
		key.Totals.TotalRequests, key.Totals.TotalTokensUsed, key.Totals.EstimatedCostCents,
	)
	if err != nil {
		if dupErr := duplicateNicknameError(err, &key.Nickname); dupErr != nil {
			r.logger.Warn("Nickname collision on key registration",
				zap.String("nickname", key.Nickname),
			)
			return dupErr
		}
		r.logger.Error("Failed to insert api key", zap.Error(err))
		return fmt.Errorf("%w: inserting api key: %v", ierr.ErrStoreUnavailable, err)
	}
	return nil
}

// duplicateNicknameError maps a postgres unique violation to
// ErrDuplicateNickname. The nickname pointer may be nil, e.g. on an update
// that never touched the nickname column.
func duplicateNicknameError(err error, nickname *string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if nickname != nil {
		return fmt.Errorf("%w: %s", ierr.ErrDuplicateNickname, *nickname)
	}
	return fmt.Errorf("%w: constraint %s", ierr.ErrDuplicateNickname, pgErr.ConstraintName)
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*apikey.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1 AND is_deleted = FALSE`
	row := r.db.QueryRow(ctx, query, id)

	key, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
		}
		r.logger.Error("Failed to load api key", zap.String("id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: loading api key: %v", ierr.ErrStoreUnavailable, err)
	}
	return key, nil
}

func (r *APIKeyRepository) List(ctx context.Context, includeDeleted bool) ([]apikey.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	if !includeDeleted {
		query += ` WHERE is_deleted = FALSE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list api keys", zap.Error(err))
		return nil, fmt.Errorf("%w: listing api keys: %v", ierr.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var keys []apikey.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning api key row: %v", ierr.ErrStoreUnavailable, err)
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating api keys: %v", ierr.ErrStoreUnavailable, err)
	}
	return keys, nil
}

// Update applies only the set administrative fields. Quota counters are not
// reachable from here; they belong exclusively to ApplyUsage.
func (r *APIKeyRepository) Update(ctx context.Context, id uuid.UUID, upd apikey.FieldUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []interface{}{id}

	if upd.Nickname != nil {
		args = append(args, *upd.Nickname)
		sets = append(sets, "nickname = $"+strconv.Itoa(len(args)))
	}
	if upd.IsActive != nil {
		args = append(args, *upd.IsActive)
		sets = append(sets, "is_active = $"+strconv.Itoa(len(args)))
	}

	query := `UPDATE api_keys SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND is_deleted = FALSE`
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if dupErr := duplicateNicknameError(err, upd.Nickname); dupErr != nil {
			return dupErr
		}
		r.logger.Error("Failed to update api key", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: updating api key: %v", ierr.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}
	return nil
}

func (r *APIKeyRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE api_keys
		SET is_deleted = TRUE, is_active = FALSE, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE
	`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to soft delete api key", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("%w: deleting api key: %v", ierr.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}
	r.logger.Info("API key soft deleted", zap.String("id", id.String()))
	return nil
}

// ApplyUsage folds one attempt into the key's counters in a single statement.
// The CASE arms apply the lazy day reset and the increment in the same atomic
// step, so concurrent commits can never observe a half-reset row and N
// concurrent single-unit commits always net exactly N.
func (r *APIKeyRepository) ApplyUsage(ctx context.Context, id uuid.UUID, delta apikey.UsageDelta) (apikey.UsageResult, error) {
	dayStart := apikey.StartOfDay(delta.Now)
	nextBoundary := apikey.NextResetBoundary(delta.Now)

	query := `
		UPDATE api_keys SET
			used_today = CASE WHEN reset_at <= $2 THEN $4 ELSE used_today + $4 END,
			reset_at   = CASE WHEN reset_at <= $2 THEN $3 ELSE reset_at END,
			total_requests       = total_requests + $4,
			total_tokens_used    = total_tokens_used + $5,
			estimated_cost_cents = estimated_cost_cents + $6,
			last_used  = $7,
			updated_at = $7
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING used_today, daily_limit
	`
	var res apikey.UsageResult
	err := r.db.QueryRow(ctx, query,
		id, dayStart, nextBoundary,
		delta.Requests, delta.Tokens, delta.CostCents, delta.Now.UTC(),
	).Scan(&res.UsedToday, &res.DailyLimit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apikey.UsageResult{}, fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
		}
		r.logger.Error("Failed to apply usage to api key", zap.String("id", id.String()), zap.Error(err))
		return apikey.UsageResult{}, fmt.Errorf("%w: applying usage: %v", ierr.ErrStoreUnavailable, err)
	}
	return res, nil
}

func scanAPIKey(row pgx.Row) (*apikey.APIKey, error) {
	var key apikey.APIKey
	err := row.Scan(
		&key.ID, &key.Secret, &key.Nickname, &key.Provider, &key.IsActive, &key.IsDeleted,
		&key.CreatedAt, &key.UpdatedAt, &key.LastUsed,
		&key.Quota.DailyLimit, &key.Quota.UsedToday, &key.Quota.ResetAt,
		&key.Totals.TotalRequests, &key.Totals.TotalTokensUsed, &key.Totals.EstimatedCostCents,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}
