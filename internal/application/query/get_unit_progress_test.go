package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

func hierarchyFixture(t *testing.T) (*fakeAssignments, *fakeSnapshots) {
	t.Helper()

	assignments := newFakeAssignments()
	assignments.byCourse["course-1"] = []string{"unit-1", "unit-2"}
	assignments.byUnit["unit-1"] = []string{"s-1", "s-2", "s-3"}
	assignments.byUnit["unit-2"] = []string{"s-4"}

	snapshots := newFakeSnapshots()
	ctx := context.Background()
	require.NoError(t, snapshots.UpsertSnapshot(ctx, progress.Snapshot{
		LearnerID: "alice", SessionID: "s-1",
		Status: progress.SessionCompleted, Percentage: 100, XPEarned: 30,
	}))
	require.NoError(t, snapshots.UpsertSnapshot(ctx, progress.Snapshot{
		LearnerID: "alice", SessionID: "s-2",
		Status: progress.SessionInProgress, Percentage: 50, XPEarned: 10,
	}))
	// s-3 и s-4 без снапшотов: участвуют как пустые.

	return assignments, snapshots
}

func TestGetUnitProgress_AveragesSessions(t *testing.T) {
	assignments, snapshots := hierarchyFixture(t)
	h := NewGetUnitProgressHandler(assignments, snapshots)

	dto, err := h.Handle(context.Background(), GetUnitProgressQuery{LearnerID: "alice", UnitID: "unit-1"})
	require.NoError(t, err)

	// (100 + 50 + 0) / 3 = 50.
	assert.Equal(t, 50, dto.Percentage)
	assert.Equal(t, 40, dto.XPEarned)
	assert.Equal(t, progress.SessionInProgress, dto.Status)
	assert.Equal(t, 3, dto.Sessions)
}

func TestGetUnitProgress_EmptyUnit(t *testing.T) {
	h := NewGetUnitProgressHandler(newFakeAssignments(), newFakeSnapshots())

	dto, err := h.Handle(context.Background(), GetUnitProgressQuery{LearnerID: "alice", UnitID: "unit-9"})
	require.NoError(t, err)

	assert.Equal(t, 0, dto.Percentage)
	assert.Equal(t, progress.SessionNotStarted, dto.Status)
	assert.Equal(t, 0, dto.Sessions)
}

func TestGetCourseProgress_AveragesUnits(t *testing.T) {
	assignments, snapshots := hierarchyFixture(t)
	h := NewGetCourseProgressHandler(assignments, snapshots)

	dto, err := h.Handle(context.Background(), GetCourseProgressQuery{LearnerID: "alice", CourseID: "course-1"})
	require.NoError(t, err)

	// unit-1 = 50%, unit-2 = 0%.
	assert.Equal(t, 25, dto.Percentage)
	assert.Equal(t, 40, dto.XPEarned)
	assert.Equal(t, progress.SessionInProgress, dto.Status)

	require.Len(t, dto.Units, 2)
	assert.Equal(t, "unit-1", dto.Units[0].UnitID)
	assert.Equal(t, 50, dto.Units[0].Percentage)
	assert.Equal(t, "unit-2", dto.Units[1].UnitID)
	assert.Equal(t, 0, dto.Units[1].Percentage)
}

func TestGetUnitProgress_Validation(t *testing.T) {
	h := NewGetUnitProgressHandler(newFakeAssignments(), newFakeSnapshots())

	_, err := h.Handle(context.Background(), GetUnitProgressQuery{UnitID: "unit-1"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(context.Background(), GetUnitProgressQuery{LearnerID: "alice"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestGetCourseProgress_Validation(t *testing.T) {
	h := NewGetCourseProgressHandler(newFakeAssignments(), newFakeSnapshots())

	_, err := h.Handle(context.Background(), GetCourseProgressQuery{CourseID: "course-1"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
