package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

func newRefreshHandler(
	assignments *fakeAssignments,
	completions *fakeCompletions,
	snapshots *fakeSnapshots,
	learners *fakeLearners,
	events *capturedEvents,
	clock progress.Clock,
) *RefreshProgressHandler {
	return NewRefreshProgressHandler(assignments, completions, snapshots, learners, events, clock)
}

func TestRefreshProgress_PersistsMergedSnapshot(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 2)

	// Третье упражнение не завершено: 2 из 3 = 67%.
	assignments.bySession["session-1"] = append(assignments.bySession["session-1"], progress.Assignment{
		ExerciseID: "session-1-ex-open",
		SessionID:  "session-1",
		OrderIndex: 2,
	})

	snapshots := newFakeSnapshots()
	events := &capturedEvents{}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	h := newRefreshHandler(assignments, completions, snapshots, newFakeLearners(), events, fixedClock{t: now})

	result, err := h.Handle(context.Background(), RefreshProgressCommand{
		LearnerID: "learner-1",
		SessionID: "session-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Rollup.Total)
	assert.Equal(t, 2, result.Rollup.CompletedCount)
	assert.Equal(t, 67, result.Snapshot.Percentage)
	assert.Equal(t, progress.SessionInProgress, result.Snapshot.Status)
	assert.False(t, result.NewlyCompleted)

	stored, err := snapshots.GetSnapshot(context.Background(), "learner-1", "session-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 67, stored.Percentage)

	assert.Len(t, events.ofType(shared.EventSnapshotMerged), 1)
	assert.Empty(t, events.ofType(shared.EventSessionCompleted))
}

func TestRefreshProgress_NeverLowersStoredProgress(t *testing.T) {
	learnerID, sessionID := "learner-1", "session-1"

	// Сырые данные дают 0%: упражнение удалили из назначений, а запись
	// о его завершении больше не видна.
	assignments := &fakeAssignments{bySession: map[string][]progress.Assignment{
		sessionID: {{ExerciseID: "ex-new", SessionID: sessionID}},
	}}
	completions := &fakeCompletions{byLearner: map[string][]progress.Completion{}}

	snapshots := newFakeSnapshots()
	require.NoError(t, snapshots.UpsertSnapshot(context.Background(), progress.Snapshot{
		LearnerID:  learnerID,
		SessionID:  sessionID,
		Status:     progress.SessionInProgress,
		Percentage: 50,
		XPEarned:   20,
	}))

	h := newRefreshHandler(assignments, completions, snapshots, newFakeLearners(), &capturedEvents{}, nil)

	result, err := h.Handle(context.Background(), RefreshProgressCommand{
		LearnerID: learnerID,
		SessionID: sessionID,
	})
	require.NoError(t, err)

	// Свежий пересчёт ниже снапшота, но наружу и в хранилище идёт максимум.
	assert.Equal(t, 0, result.Rollup.Percentage)
	assert.Equal(t, 50, result.Snapshot.Percentage)
	assert.Equal(t, 20, result.Snapshot.XPEarned)
	assert.Equal(t, progress.SessionInProgress, result.Snapshot.Status)

	stored, err := snapshots.GetSnapshot(context.Background(), learnerID, sessionID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Percentage)
}

func TestRefreshProgress_FirstCompletionUpdatesStreak(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 2)
	snapshots := newFakeSnapshots()
	learners := newFakeLearners()
	events := &capturedEvents{}

	l, err := learner.NewLearner(learner.NewLearnerParams{ID: "learner-1", DisplayName: "Alice"})
	require.NoError(t, err)
	require.NoError(t, learners.Create(context.Background(), l))

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newRefreshHandler(assignments, completions, snapshots, learners, events, fixedClock{t: now})

	cmd := RefreshProgressCommand{LearnerID: "learner-1", SessionID: "session-1"}

	result, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, result.NewlyCompleted)

	updated, err := learners.GetByID(context.Background(), "learner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, updated.StreakCount)

	assert.Len(t, events.ofType(shared.EventSessionCompleted), 1)
	assert.Len(t, events.ofType(shared.EventStreakUpdated), 1)

	// Повторный пересчёт уже завершённой сессии ничего не дублирует.
	result, err = h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.False(t, result.NewlyCompleted)
	assert.Len(t, events.ofType(shared.EventSessionCompleted), 1)
	assert.Len(t, events.ofType(shared.EventStreakUpdated), 1)
}

func TestRefreshProgress_EmptySessionIsNotStarted(t *testing.T) {
	assignments := &fakeAssignments{bySession: map[string][]progress.Assignment{}}
	completions := &fakeCompletions{byLearner: map[string][]progress.Completion{}}
	snapshots := newFakeSnapshots()

	h := newRefreshHandler(assignments, completions, snapshots, newFakeLearners(), &capturedEvents{}, nil)

	result, err := h.Handle(context.Background(), RefreshProgressCommand{
		LearnerID: "learner-1",
		SessionID: "empty",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Rollup.Total)
	assert.Equal(t, 0, result.Snapshot.Percentage)
	assert.Equal(t, progress.SessionNotStarted, result.Snapshot.Status)
	assert.False(t, result.NewlyCompleted)
}

func TestRefreshProgress_Validation(t *testing.T) {
	h := newRefreshHandler(
		&fakeAssignments{}, &fakeCompletions{},
		newFakeSnapshots(), newFakeLearners(), &capturedEvents{}, nil,
	)

	_, err := h.Handle(context.Background(), RefreshProgressCommand{SessionID: "s"})
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), RefreshProgressCommand{LearnerID: "l"})
	assert.Error(t, err)
}
