// Package lesson содержит доменную модель офлайн-урока: посещаемость,
// оценки преподавателя и конвертацию оценок в XP.
package lesson

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// AttendanceStatus определяет статус посещения урока.
type AttendanceStatus string

const (
	// AttendancePresent - ученик присутствовал.
	AttendancePresent AttendanceStatus = "present"
	// AttendanceLate - ученик опоздал.
	AttendanceLate AttendanceStatus = "late"
	// AttendanceAbsent - ученик отсутствовал.
	AttendanceAbsent AttendanceStatus = "absent"
	// AttendanceExcused - отсутствие по уважительной причине.
	AttendanceExcused AttendanceStatus = "excused"
)

// IsValid проверяет, что статус корректен.
func (s AttendanceStatus) IsValid() bool {
	switch s {
	case AttendancePresent, AttendanceLate, AttendanceAbsent, AttendanceExcused:
		return true
	default:
		return false
	}
}

// Attended возвращает true, если ученик был на уроке (вовремя или с опозданием).
// Отсутствие, даже уважительное, обнуляет XP за урок независимо от оценок.
func (s AttendanceStatus) Attended() bool {
	return s == AttendancePresent || s == AttendanceLate
}

// Rating - трёхступенчатая оценка преподавателя.
type Rating string

const (
	// RatingOK - нормально.
	RatingOK Rating = "ok"
	// RatingGood - хорошо.
	RatingGood Rating = "good"
	// RatingWow - отлично.
	RatingWow Rating = "wow"

	// RatingNone - оценка не выставлена.
	RatingNone Rating = ""
)

// IsValid проверяет, что оценка корректна (пустая тоже допустима).
func (r Rating) IsValid() bool {
	switch r {
	case RatingOK, RatingGood, RatingWow, RatingNone:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Info - метаданные урока: курс, дата и бонусный множитель XP.
type Info struct {
	// ID - идентификатор урока.
	ID string

	// CourseID - идентификатор курса.
	CourseID string

	// SessionDate - дата проведения урока.
	SessionDate time.Time

	// XPBonusMultiplier - множитель XP за этот урок (обычно 1.0).
	XPBonusMultiplier float64

	// Topic - тема урока.
	Topic string

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// ErrInvalidInfo - невалидные метаданные урока.
var ErrInvalidInfo = errors.New("invalid lesson info: course, date and positive multiplier required")

// NewInfo создаёт метаданные урока с валидацией.
func NewInfo(id, courseID string, date time.Time, multiplier float64, topic string) (Info, error) {
	if id == "" || courseID == "" || date.IsZero() || multiplier <= 0 {
		return Info{}, ErrInvalidInfo
	}
	return Info{
		ID:                id,
		CourseID:          courseID,
		SessionDate:       date,
		XPBonusMultiplier: multiplier,
		Topic:             topic,
		CreatedAt:         time.Now().UTC(),
	}, nil
}

// Record - запись преподавателя об одном ученике на одном уроке.
// Логически одна строка на пару (урок, ученик); побеждает последняя запись.
type Record struct {
	// LessonInfoID - идентификатор урока.
	LessonInfoID string

	// LearnerID - идентификатор ученика.
	LearnerID string

	// Attendance - статус посещения.
	Attendance AttendanceStatus

	// Performance - оценка за работу на уроке. RatingNone, если не выставлена.
	Performance Rating

	// Homework - оценка за домашнее задание. RatingNone, если не выставлена.
	Homework Rating

	// StarFlag - отметка "звезда урока".
	StarFlag bool

	// Notes - свободный комментарий преподавателя.
	Notes string
}

// Validate проверяет корректность записи.
func (r Record) Validate() error {
	if r.LessonInfoID == "" {
		return errors.New("lesson record: lesson_info_id is required")
	}
	if r.LearnerID == "" {
		return errors.New("lesson record: learner_id is required")
	}
	if !r.Attendance.IsValid() {
		return errors.New("lesson record: invalid attendance status")
	}
	if !r.Performance.IsValid() || !r.Homework.IsValid() {
		return errors.New("lesson record: invalid rating")
	}
	return nil
}
