package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

func classFixture(t *testing.T) *fakeLessons {
	t.Helper()

	lessons := newFakeLessons()

	info, err := lesson.NewInfo("l-1", "course-1",
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 1.0, "past simple")
	require.NoError(t, err)
	require.NoError(t, lessons.CreateInfo(context.Background(), info))

	lessons.records["l-1"] = []lesson.Record{
		// 135 из 135 -> 100%.
		{LessonInfoID: "l-1", LearnerID: "alice", Attendance: lesson.AttendancePresent, Performance: lesson.RatingWow, Homework: lesson.RatingWow},
		// 45 из 135 -> 33.3%.
		{LessonInfoID: "l-1", LearnerID: "bob", Attendance: lesson.AttendancePresent, Performance: lesson.RatingOK, Homework: lesson.RatingOK},
		// Отсутствие - твёрдый ноль в знаменателе.
		{LessonInfoID: "l-1", LearnerID: "carol", Attendance: lesson.AttendanceAbsent},
	}

	return lessons
}

func TestGetClassXPRate_ComputesRate(t *testing.T) {
	h := NewGetClassXPRateHandler(classFixture(t))

	dto, err := h.Handle(context.Background(), GetClassXPRateQuery{CourseID: "course-1"})
	require.NoError(t, err)

	// (100 + 33.3 + 0) / 3 = 44.4% -> 4.4 из 10.
	assert.Equal(t, "course-1", dto.CourseID)
	assert.Equal(t, 4.4, dto.Rate)
	assert.Equal(t, 1, dto.Lessons)
	assert.Equal(t, 3, dto.Records)
}

func TestGetClassXPRate_PeriodFiltersLessons(t *testing.T) {
	lessons := classFixture(t)
	h := NewGetClassXPRateHandler(lessons)

	dto, err := h.Handle(context.Background(), GetClassXPRateQuery{
		CourseID: "course-1",
		From:     time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, dto.Rate)
	assert.Equal(t, 0, dto.Lessons)
	assert.Equal(t, 0, dto.Records)
}

func TestGetClassXPRate_EmptyCourse(t *testing.T) {
	h := NewGetClassXPRateHandler(newFakeLessons())

	dto, err := h.Handle(context.Background(), GetClassXPRateQuery{CourseID: "course-9"})
	require.NoError(t, err)

	assert.Equal(t, 0.0, dto.Rate)
}

func TestGetClassXPRate_Validation(t *testing.T) {
	h := NewGetClassXPRateHandler(newFakeLessons())

	_, err := h.Handle(context.Background(), GetClassXPRateQuery{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Handle(context.Background(), GetClassXPRateQuery{
		CourseID: "course-1",
		From:     time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
