package redis

import (
	"context"
	"errors"

	"github.com/questhall/questhall-progress-hub/internal/application/query"
)

// RollupCache implements query.RollupCache using the generic Redis Cache.
// Keys are namespaced per learner so any write for the learner can drop the
// whole namespace in one sweep.
type RollupCache struct {
	cache *Cache
}

// NewRollupCache creates a new RollupCache.
func NewRollupCache(cache *Cache) *RollupCache {
	return &RollupCache{cache: cache}
}

// GetSessionProgress returns a cached session progress DTO, or (nil, nil)
// on a miss.
func (r *RollupCache) GetSessionProgress(ctx context.Context, learnerID, sessionID string) (*query.SessionProgressDTO, error) {
	var dto query.SessionProgressDTO

	err := r.cache.Get(ctx, RollupKey(learnerID, sessionID), &dto)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &dto, nil
}

// SetSessionProgress stores a session progress DTO with the rollup TTL.
func (r *RollupCache) SetSessionProgress(ctx context.Context, learnerID string, dto *query.SessionProgressDTO) error {
	if dto == nil {
		return nil
	}
	return r.cache.Set(ctx, RollupKey(learnerID, dto.SessionID), dto, TTLRollupCache)
}

// InvalidateLearner drops all cached rollups of a learner. Called after any
// write that can move the learner's progress.
func (r *RollupCache) InvalidateLearner(ctx context.Context, learnerID string) error {
	return r.cache.DeleteByPattern(ctx, LearnerRollupPattern(learnerID))
}
