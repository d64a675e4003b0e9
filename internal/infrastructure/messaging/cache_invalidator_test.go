package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/application/query"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// fakeRollupCache records invalidations.
type fakeRollupCache struct {
	mu          sync.Mutex
	invalidated []string
	err         error
}

func (f *fakeRollupCache) GetSessionProgress(ctx context.Context, learnerID, sessionID string) (*query.SessionProgressDTO, error) {
	return nil, nil
}

func (f *fakeRollupCache) SetSessionProgress(ctx context.Context, learnerID string, dto *query.SessionProgressDTO) error {
	return nil
}

func (f *fakeRollupCache) InvalidateLearner(ctx context.Context, learnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, learnerID)
	return f.err
}

func (f *fakeRollupCache) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.invalidated...)
}

func TestCacheInvalidator_DropsLearnerOnProgressEvents(t *testing.T) {
	cache := &fakeRollupCache{}
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(NewCacheInvalidator(cache, nil)))

	require.NoError(t, bus.Publish(shared.NewSnapshotMergedEvent("learner-1", "session-1", 0, 67)))
	require.NoError(t, bus.Publish(shared.NewRewardClaimedEvent("learner-2", "session-9", 24, 124)))
	require.NoError(t, bus.Publish(shared.NewXPCreditedEvent("learner-3", 90, 190, "lesson")))

	assert.Equal(t, []string{"learner-1", "learner-2", "learner-3"}, cache.calls())
}

func TestCacheInvalidator_IgnoresLessonSaved(t *testing.T) {
	cache := &fakeRollupCache{}
	bus := newSyncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(NewCacheInvalidator(cache, nil)))

	// LessonSavedEvent's aggregate is the lesson, not a learner; the
	// per-learner XPCredited events carry the invalidations instead.
	require.NoError(t, bus.Publish(shared.NewLessonSavedEvent("lesson-1", 4, 2, 0)))

	assert.Empty(t, cache.calls())
}

func TestCacheInvalidator_RetriesThenReportsCacheErrors(t *testing.T) {
	cache := &fakeRollupCache{err: errors.New("redis down")}
	inv := NewCacheInvalidator(cache, nil)

	err := inv.Handle(shared.NewSnapshotMergedEvent("learner-1", "session-1", 10, 20))
	assert.Error(t, err)
	// One quick retry before giving up; a failed sweep leaves stale
	// reads until the TTL.
	assert.Equal(t, []string{"learner-1", "learner-1"}, cache.calls())
}
