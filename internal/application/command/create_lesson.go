package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE LESSON COMMAND
// Создаёт метаданные офлайн-урока: курс, дата, тема и бонусный множитель XP.
// Записи преподавателя по ученикам добавляются позже отдельной командой.
// ══════════════════════════════════════════════════════════════════════════════

// CreateLessonCommand содержит данные для создания урока.
type CreateLessonCommand struct {
	// LessonInfoID - идентификатор урока. Пустой означает сгенерировать.
	LessonInfoID string

	// CourseID - идентификатор курса.
	CourseID string

	// SessionDate - дата проведения урока.
	SessionDate time.Time

	// XPBonusMultiplier - множитель XP. Ноль означает множитель по умолчанию.
	XPBonusMultiplier float64

	// Topic - тема урока.
	Topic string

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c CreateLessonCommand) Validate() error {
	if c.CourseID == "" {
		return errors.New("create_lesson: course_id is required")
	}
	if c.SessionDate.IsZero() {
		return errors.New("create_lesson: session_date is required")
	}
	if c.XPBonusMultiplier < 0 {
		return errors.New("create_lesson: bonus multiplier cannot be negative")
	}
	return nil
}

// CreateLessonResult содержит результат создания урока.
type CreateLessonResult struct {
	// Info - созданные метаданные урока.
	Info lesson.Info
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateLessonHandler обрабатывает CreateLessonCommand.
type CreateLessonHandler struct {
	lessons lesson.Repository

	// defaultMultiplier применяется к урокам без явного множителя.
	defaultMultiplier float64
}

// NewCreateLessonHandler создаёт новый CreateLessonHandler.
// Неположительный defaultMultiplier означает 1.0.
func NewCreateLessonHandler(lessons lesson.Repository, defaultMultiplier float64) *CreateLessonHandler {
	if defaultMultiplier <= 0 {
		defaultMultiplier = 1.0
	}
	return &CreateLessonHandler{
		lessons:           lessons,
		defaultMultiplier: defaultMultiplier,
	}
}

// Handle создаёт урок.
func (h *CreateLessonHandler) Handle(ctx context.Context, cmd CreateLessonCommand) (*CreateLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("lesson", "Create", shared.ErrValidation, "validation failed", err)
	}

	id := cmd.LessonInfoID
	if id == "" {
		id = uuid.NewString()
	}

	multiplier := cmd.XPBonusMultiplier
	if multiplier == 0 {
		multiplier = h.defaultMultiplier
	}

	info, err := lesson.NewInfo(id, cmd.CourseID, cmd.SessionDate, multiplier, cmd.Topic)
	if err != nil {
		return nil, shared.WrapError("lesson", "Create", shared.ErrValidation, "validation failed", err)
	}

	if err := h.lessons.CreateInfo(ctx, info); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.ErrLessonAlreadyExists
		}
		return nil, fmt.Errorf("create_lesson: failed to create lesson info: %w", err)
	}

	return &CreateLessonResult{Info: info}, nil
}
