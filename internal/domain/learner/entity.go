// Package learner содержит доменную модель ученика платформы Questhall.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package learner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта ученика.
// Счётчик монотонно неубывающий: единственный разрешённый способ записи -
// атомарный инкремент на уровне хранилища. Никто не читает значение,
// не считает новое на клиенте и не перезаписывает его.
type XP int

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Level представляет уровень ученика, вычисляемый из XP.
type Level int

// CalculateLevel вычисляет уровень на основе XP.
// Формула: каждые 500 XP = 1 уровень.
func CalculateLevel(xp XP) Level {
	if xp < 0 {
		return 0
	}
	return Level(xp / 500)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LEARNER
// ══════════════════════════════════════════════════════════════════════════════

// Learner - центральная сущность системы, представляющая ученика.
type Learner struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// DisplayName - отображаемое имя.
	DisplayName string

	// CurrentXP - текущее количество очков опыта.
	// Пишется двумя независимыми подсистемами (награды за сессии и
	// XP за уроки), поэтому обновляется только атомарным инкрементом.
	CurrentXP XP

	// StreakCount - текущая серия дней с завершёнными сессиями.
	StreakCount int

	// LastCompletedAt - дата последней завершённой сессии (для серии).
	LastCompletedAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidXP - невалидное значение XP.
	ErrInvalidXP = errors.New("invalid xp: must be non-negative")

	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewLearnerParams содержит параметры для создания нового ученика.
type NewLearnerParams struct {
	ID          string
	DisplayName string
	InitialXP   XP
}

// NewLearner создаёт нового ученика с валидацией всех полей.
func NewLearner(params NewLearnerParams) (*Learner, error) {
	if params.ID == "" {
		return nil, errors.New("learner id is required")
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	if !params.InitialXP.IsValid() {
		return nil, ErrInvalidXP
	}

	now := time.Now().UTC()

	return &Learner{
		ID:          params.ID,
		DisplayName: displayName,
		CurrentXP:   params.InitialXP,
		StreakCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// Level возвращает текущий уровень ученика.
func (l *Learner) Level() Level {
	return CalculateLevel(l.CurrentXP)
}

// RecordCompletion обновляет серию при завершении сессии в указанную дату.
// Тот же день не меняет серию, следующий день продлевает, пропуск сбрасывает.
func (l *Learner) RecordCompletion(at time.Time) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)

	if l.LastCompletedAt.IsZero() {
		l.StreakCount = 1
		l.LastCompletedAt = day
		l.UpdatedAt = time.Now().UTC()
		return
	}

	last := time.Date(
		l.LastCompletedAt.Year(),
		l.LastCompletedAt.Month(),
		l.LastCompletedAt.Day(),
		0, 0, 0, 0, time.UTC,
	)

	daysDiff := int(day.Sub(last).Hours() / 24)

	switch {
	case daysDiff == 0:
		return
	case daysDiff == 1:
		l.StreakCount++
	default:
		l.StreakCount = 1
	}

	l.LastCompletedAt = day
	l.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление ученика для логирования.
func (l *Learner) String() string {
	return fmt.Sprintf(
		"Learner{ID: %s, XP: %d, Level: %d, Streak: %d}",
		l.ID, l.CurrentXP, l.Level(), l.StreakCount,
	)
}

// Clone создаёт копию ученика.
func (l *Learner) Clone() *Learner {
	if l == nil {
		return nil
	}

	clone := *l
	return &clone
}
