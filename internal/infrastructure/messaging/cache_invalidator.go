package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/application/query"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
	"github.com/questhall/questhall-progress-hub/pkg/retry"
)

// invalidateTimeout bounds a single cache sweep. The cache is advisory:
// a slow or failed invalidation only means a stale read until the TTL.
const invalidateTimeout = 2 * time.Second

// CacheInvalidator drops a learner's cached rollups whenever an event
// signals that the learner's progress or XP moved. It keeps the command
// side free of any cache dependency.
type CacheInvalidator struct {
	cache   query.RollupCache
	logger  *slog.Logger
	retrier *retry.Retrier
}

// NewCacheInvalidator creates a new CacheInvalidator.
func NewCacheInvalidator(cache query.RollupCache, logger *slog.Logger) *CacheInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{
		cache:   cache,
		logger:  logger,
		retrier: retry.CacheRetrier(),
	}
}

// EventTypes implements shared.EventHandler.
func (c *CacheInvalidator) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventSnapshotMerged,
		shared.EventSessionCompleted,
		shared.EventRewardClaimed,
		shared.EventXPCredited,
	}
}

// Handle implements shared.EventHandler. The aggregate ID of every
// subscribed event is the learner ID.
func (c *CacheInvalidator) Handle(event shared.Event) error {
	learnerID := event.AggregateID()
	if learnerID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return retry.Retryable(c.cache.InvalidateLearner(ctx, learnerID))
	})
	if err != nil {
		c.logger.Warn("cache invalidation failed",
			"learner_id", learnerID,
			"event_type", event.EventType(),
			"error", err,
		)
		return err
	}

	return nil
}
