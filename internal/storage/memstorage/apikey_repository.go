package memstorage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/ierr"
)

// APIKeyRepository is a mutex-guarded in-memory implementation of the key
// store. ApplyUsage performs the conditional reset and the increments under
// one lock acquisition, matching the atomicity contract of the SQL
// implementation, which makes this the store harness for concurrency tests.
type APIKeyRepository struct {
	mu   sync.RWMutex
	keys map[uuid.UUID]*apikey.APIKey
}

func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{
		keys: make(map[uuid.UUID]*apikey.APIKey),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) Create(ctx context.Context, key *apikey.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.keys {
		if !existing.IsDeleted && existing.Nickname == key.Nickname {
			return fmt.Errorf("%w: %s", ierr.ErrDuplicateNickname, key.Nickname)
		}
	}

	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[id]
	if !ok || key.IsDeleted {
		return nil, fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}
	cp := *key
	return &cp, nil
}

func (r *APIKeyRepository) List(ctx context.Context, includeDeleted bool) ([]apikey.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []apikey.APIKey
	for _, key := range r.keys {
		if key.IsDeleted && !includeDeleted {
			continue
		}
		keys = append(keys, *key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].CreatedAt.After(keys[j].CreatedAt)
	})
	return keys, nil
}

func (r *APIKeyRepository) Update(ctx context.Context, id uuid.UUID, upd apikey.FieldUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok || key.IsDeleted {
		return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}

	if upd.Nickname != nil {
		for _, existing := range r.keys {
			if existing.ID != id && !existing.IsDeleted && existing.Nickname == *upd.Nickname {
				return fmt.Errorf("%w: %s", ierr.ErrDuplicateNickname, *upd.Nickname)
			}
		}
		key.Nickname = *upd.Nickname
	}
	if upd.IsActive != nil {
		key.IsActive = *upd.IsActive
	}
	return nil
}

func (r *APIKeyRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok || key.IsDeleted {
		return fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}
	key.IsDeleted = true
	key.IsActive = false
	return nil
}

func (r *APIKeyRepository) ApplyUsage(ctx context.Context, id uuid.UUID, delta apikey.UsageDelta) (apikey.UsageResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[id]
	if !ok || key.IsDeleted {
		return apikey.UsageResult{}, fmt.Errorf("%w: api key %s", ierr.ErrNotFound, id)
	}

	dayStart := apikey.StartOfDay(delta.Now)
	if !key.Quota.ResetAt.After(dayStart) {
		key.Quota.UsedToday = delta.Requests
		key.Quota.ResetAt = apikey.NextResetBoundary(delta.Now)
	} else {
		key.Quota.UsedToday += delta.Requests
	}

	key.Totals.TotalRequests += int64(delta.Requests)
	key.Totals.TotalTokensUsed += delta.Tokens
	key.Totals.EstimatedCostCents += delta.CostCents

	now := delta.Now.UTC()
	key.LastUsed = &now
	key.UpdatedAt = now

	return apikey.UsageResult{
		UsedToday:  key.Quota.UsedToday,
		DailyLimit: key.Quota.DailyLimit,
	}, nil
}
