package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

func lessonFixture(t *testing.T, lessons *fakeLessons, multiplier float64) lesson.Info {
	t.Helper()

	info, err := lesson.NewInfo(
		"lesson-1", "course-1",
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		multiplier, "present perfect",
	)
	require.NoError(t, err)

	lessons.infos[info.ID] = info
	return info
}

func TestSaveLesson_CreditsAttendedGradedLearners(t *testing.T) {
	lessons := newFakeLessons()
	lessonFixture(t, lessons, 1.0)
	counter := newFakeXPCounter()
	events := &capturedEvents{}

	h := NewSaveLessonHandler(lessons, counter, events)

	result, err := h.Handle(context.Background(), SaveLessonCommand{
		LessonInfoID: "lesson-1",
		Records: []lesson.Record{
			// wow/wow вовремя: 90 + 45 = 135.
			{LearnerID: "alice", Attendance: lesson.AttendancePresent, Performance: lesson.RatingWow, Homework: lesson.RatingWow},
			// good/ok с опозданием: 60 + 15 - 15 = 60.
			{LearnerID: "bob", Attendance: lesson.AttendanceLate, Performance: lesson.RatingGood, Homework: lesson.RatingOK},
			// Отсутствие обнуляет урок независимо от оценок.
			{LearnerID: "carol", Attendance: lesson.AttendanceAbsent, Performance: lesson.RatingWow, Homework: lesson.RatingWow},
			// Присутствие без оценок - начислять нечего.
			{LearnerID: "dave", Attendance: lesson.AttendancePresent},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.RecordsSaved)
	require.Len(t, result.Credits, 2)
	assert.Equal(t, 2, result.CreditedCount())
	assert.Equal(t, 0, result.FailedCount())

	assert.Equal(t, 135, int(counter.total("alice")))
	assert.Equal(t, 60, int(counter.total("bob")))
	assert.Equal(t, 0, int(counter.total("carol")))
	assert.Equal(t, 0, int(counter.total("dave")))

	assert.Len(t, events.ofType(shared.EventXPCredited), 2)
	assert.Len(t, events.ofType(shared.EventLessonSaved), 1)
}

func TestSaveLesson_BonusMultiplierApplied(t *testing.T) {
	lessons := newFakeLessons()
	lessonFixture(t, lessons, 1.5)
	counter := newFakeXPCounter()

	h := NewSaveLessonHandler(lessons, counter, &capturedEvents{})

	result, err := h.Handle(context.Background(), SaveLessonCommand{
		LessonInfoID: "lesson-1",
		Records: []lesson.Record{
			// (30 + 15) * 1.5 = 67.5 -> 68.
			{LearnerID: "alice", Attendance: lesson.AttendancePresent, Performance: lesson.RatingOK, Homework: lesson.RatingOK},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Credits, 1)
	assert.Equal(t, 68, result.Credits[0].Delta)
	assert.Equal(t, 68, int(counter.total("alice")))
}

func TestSaveLesson_RowFailureDoesNotBlockOthers(t *testing.T) {
	lessons := newFakeLessons()
	lessonFixture(t, lessons, 1.0)
	counter := newFakeXPCounter()
	counter.failFor["bob"] = errors.New("connection reset")
	events := &capturedEvents{}

	h := NewSaveLessonHandler(lessons, counter, events)

	result, err := h.Handle(context.Background(), SaveLessonCommand{
		LessonInfoID: "lesson-1",
		Records: []lesson.Record{
			{LearnerID: "alice", Attendance: lesson.AttendancePresent, Performance: lesson.RatingWow, Homework: lesson.RatingWow},
			{LearnerID: "bob", Attendance: lesson.AttendancePresent, Performance: lesson.RatingWow, Homework: lesson.RatingWow},
			{LearnerID: "carol", Attendance: lesson.AttendancePresent, Performance: lesson.RatingOK, Homework: lesson.RatingNone},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Credits, 3)
	assert.Equal(t, 2, result.CreditedCount())
	assert.Equal(t, 1, result.FailedCount())

	// Падение строки Боба не откатывает и не блокирует соседей.
	assert.Equal(t, 135, int(counter.total("alice")))
	assert.Equal(t, 0, int(counter.total("bob")))
	assert.Equal(t, 30, int(counter.total("carol")))

	var failed *CreditRow
	for i := range result.Credits {
		if result.Credits[i].Err != nil {
			failed = &result.Credits[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "bob", failed.LearnerID)

	assert.Len(t, events.ofType(shared.EventXPCredited), 2)
}

func TestSaveLesson_ResaveAppliesDeltasAgain(t *testing.T) {
	lessons := newFakeLessons()
	lessonFixture(t, lessons, 1.0)
	counter := newFakeXPCounter()

	h := NewSaveLessonHandler(lessons, counter, &capturedEvents{})

	cmd := SaveLessonCommand{
		LessonInfoID: "lesson-1",
		Records: []lesson.Record{
			{LearnerID: "alice", Attendance: lesson.AttendancePresent, Performance: lesson.RatingGood, Homework: lesson.RatingGood},
		},
	}

	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	// Повторное сохранение начисляет заново: 90 + 90.
	assert.Equal(t, 180, int(counter.total("alice")))
	assert.Equal(t, 2, lessons.upserts)
}

func TestSaveLesson_LessonNotFound(t *testing.T) {
	h := NewSaveLessonHandler(newFakeLessons(), newFakeXPCounter(), &capturedEvents{})

	_, err := h.Handle(context.Background(), SaveLessonCommand{
		LessonInfoID: "missing",
		Records: []lesson.Record{
			{LearnerID: "alice", Attendance: lesson.AttendancePresent},
		},
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSaveLesson_Validation(t *testing.T) {
	h := NewSaveLessonHandler(newFakeLessons(), newFakeXPCounter(), &capturedEvents{})

	tests := []struct {
		name string
		cmd  SaveLessonCommand
	}{
		{"missing lesson id", SaveLessonCommand{Records: []lesson.Record{{LearnerID: "a", Attendance: lesson.AttendancePresent}}}},
		{"no records", SaveLessonCommand{LessonInfoID: "lesson-1"}},
		{
			"duplicate learner",
			SaveLessonCommand{
				LessonInfoID: "lesson-1",
				Records: []lesson.Record{
					{LearnerID: "a", Attendance: lesson.AttendancePresent},
					{LearnerID: "a", Attendance: lesson.AttendanceLate},
				},
			},
		},
		{
			"foreign lesson id on record",
			SaveLessonCommand{
				LessonInfoID: "lesson-1",
				Records: []lesson.Record{
					{LessonInfoID: "lesson-2", LearnerID: "a", Attendance: lesson.AttendancePresent},
				},
			},
		},
		{
			"invalid attendance",
			SaveLessonCommand{
				LessonInfoID: "lesson-1",
				Records:      []lesson.Record{{LearnerID: "a", Attendance: "vanished"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
		})
	}
}
