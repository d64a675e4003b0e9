package lesson

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Repository хранит уроки и записи преподавателя.
type Repository interface {
	// CreateInfo создаёт метаданные урока.
	CreateInfo(ctx context.Context, info Info) error

	// GetInfo возвращает метаданные урока.
	GetInfo(ctx context.Context, lessonInfoID string) (*Info, error)

	// ListInfosByCourse возвращает уроки курса за период.
	ListInfosByCourse(ctx context.Context, courseID string, from, to time.Time) ([]Info, error)

	// GetRecords возвращает записи урока по всем ученикам.
	GetRecords(ctx context.Context, lessonInfoID string) ([]Record, error)

	// ListRecordsByCourse возвращает записи всех уроков курса за период -
	// вход для расчёта оценки класса.
	ListRecordsByCourse(ctx context.Context, courseID string, from, to time.Time) ([]Record, error)

	// UpsertRecords сохраняет записи урока. Одна логическая строка на пару
	// (урок, ученик); повторное сохранение перезаписывает прежние значения.
	UpsertRecords(ctx context.Context, lessonInfoID string, records []Record) error
}
