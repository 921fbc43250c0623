package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/skedlab/extractor-api/internal/domain/apikey"
	"github.com/skedlab/extractor-api/internal/ierr"
	"github.com/skedlab/extractor-api/internal/metrics"
	"go.uber.org/zap"
)

// Candidate pairs a key with its effective quota state at selection time.
// The ranking is advisory: nothing is reserved, and a commit racing ahead of
// the caller may still push the key over its limit.
type Candidate struct {
	Key   apikey.APIKey
	State apikey.EffectiveState
}

type SelectorService struct {
	repo   apikey.Repository
	logger *zap.Logger
}

func NewSelectorService(repo apikey.Repository, logger *zap.Logger) *SelectorService {
	return &SelectorService{
		repo:   repo,
		logger: logger.Named("SelectorService"),
	}
}

// Rank filters keys to active, non-deleted ones with remaining quota and
// orders them by remaining descending, nickname ascending on ties.
func Rank(keys []apikey.APIKey, now time.Time) []Candidate {
	var candidates []Candidate
	for _, key := range keys {
		if !key.IsActive || key.IsDeleted {
			continue
		}
		state := apikey.Effective(&key, now)
		if state.Remaining <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{Key: key, State: state})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].State.Remaining != candidates[j].State.Remaining {
			return candidates[i].State.Remaining > candidates[j].State.Remaining
		}
		return candidates[i].Key.Nickname < candidates[j].Key.Nickname
	})
	return candidates
}

// Candidates returns the full ranked list of usable keys, or
// ErrNoAvailableKeys when the pool is exhausted.
func (s *SelectorService) Candidates(ctx context.Context) ([]Candidate, error) {
	keys, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}

	candidates := Rank(keys, time.Now().UTC())
	if len(candidates) == 0 {
		metrics.SelectorExhaustions.Inc()
		s.logger.Warn("Key pool exhausted", zap.Int("pool_size", len(keys)))
		return nil, ierr.ErrNoAvailableKeys
	}
	return candidates, nil
}

// WithKey runs fn against the top-ranked candidate, re-selecting on a
// QuotaExceeded race. Retries are bounded by the pool size observed at the
// first selection; once exhausted the pool-level ErrNoAvailableKeys is
// surfaced instead of the per-key signal.
func (s *SelectorService) WithKey(ctx context.Context, fn func(context.Context, Candidate) error) error {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return err
	}

	bound := len(candidates)
	for attempt := 0; attempt < bound; attempt++ {
		if attempt > 0 {
			candidates, err = s.Candidates(ctx)
			if err != nil {
				return err
			}
		}

		err = fn(ctx, candidates[0])
		if errors.Is(err, ierr.ErrQuotaExceeded) {
			s.logger.Debug("Candidate key exhausted mid-flight, retrying selection",
				zap.String("key_id", candidates[0].Key.ID.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return err
	}

	return fmt.Errorf("%w: selection retries exhausted", ierr.ErrNoAvailableKeys)
}
