package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE LESSON COMMAND
// Сохраняет записи преподавателя по уроку и начисляет XP присутствовавшим
// оценённым ученикам. Начисления независимы: падение одной строки не
// блокирует и не откатывает остальные, результат отдаётся построчно.
//
// Повторное сохранение урока применит дельты заново - это известное,
// сознательно не исправляемое поведение (позволяет преподавателю
// корректировать оценки ценой повторного начисления).
// ══════════════════════════════════════════════════════════════════════════════

// SaveLessonCommand содержит данные для сохранения урока.
type SaveLessonCommand struct {
	// LessonInfoID - идентификатор урока.
	LessonInfoID string

	// Records - записи по ученикам. Одна логическая строка на ученика.
	Records []lesson.Record

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c SaveLessonCommand) Validate() error {
	if c.LessonInfoID == "" {
		return errors.New("save_lesson: lesson_info_id is required")
	}
	if len(c.Records) == 0 {
		return errors.New("save_lesson: at least one record is required")
	}

	seen := make(map[string]bool, len(c.Records))
	for i, r := range c.Records {
		if r.LessonInfoID != "" && r.LessonInfoID != c.LessonInfoID {
			return fmt.Errorf("save_lesson: record %d belongs to another lesson", i)
		}
		if err := normalizeRecord(&c.Records[i], c.LessonInfoID); err != nil {
			return fmt.Errorf("save_lesson: record %d: %w", i, err)
		}
		if seen[r.LearnerID] {
			return fmt.Errorf("save_lesson: duplicate record for learner %s", r.LearnerID)
		}
		seen[r.LearnerID] = true
	}

	return nil
}

func normalizeRecord(r *lesson.Record, lessonInfoID string) error {
	r.LessonInfoID = lessonInfoID
	return r.Validate()
}

// CreditRow - результат начисления по одному ученику.
type CreditRow struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// Delta - начисленный XP.
	Delta int

	// NewTotal - новое значение счётчика (если Err == nil).
	NewTotal int

	// Err - ошибка этой строки. Не влияет на остальные строки.
	Err error
}

// SaveLessonResult содержит результат сохранения урока.
type SaveLessonResult struct {
	// LessonInfoID - идентификатор урока.
	LessonInfoID string

	// RecordsSaved - сколько записей сохранено.
	RecordsSaved int

	// Credits - построчные результаты начислений.
	// Ученики без положительной дельты сюда не попадают.
	Credits []CreditRow

	// SavedAt - время сохранения.
	SavedAt time.Time
}

// CreditedCount возвращает количество успешных начислений.
func (r *SaveLessonResult) CreditedCount() int {
	n := 0
	for _, c := range r.Credits {
		if c.Err == nil {
			n++
		}
	}
	return n
}

// FailedCount возвращает количество неуспешных начислений.
func (r *SaveLessonResult) FailedCount() int {
	return len(r.Credits) - r.CreditedCount()
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SaveLessonHandler обрабатывает SaveLessonCommand.
type SaveLessonHandler struct {
	lessons   lesson.Repository
	xpCounter learner.XPCounter
	events    shared.EventPublisher
}

// NewSaveLessonHandler создаёт новый SaveLessonHandler.
func NewSaveLessonHandler(
	lessons lesson.Repository,
	xpCounter learner.XPCounter,
	events shared.EventPublisher,
) *SaveLessonHandler {
	return &SaveLessonHandler{
		lessons:   lessons,
		xpCounter: xpCounter,
		events:    events,
	}
}

// Handle сохраняет урок и начисляет XP.
//
// Сначала upsert записей (одна строка на пару урок-ученик, последняя
// запись побеждает), затем вычисление дельт чистой функцией и пакет
// независимых атомарных инкрементов. Начисления, начатые здесь, должны
// дойти до конца независимо от ухода пользователя со страницы - поэтому
// обработчик не прерывается между строками.
func (h *SaveLessonHandler) Handle(ctx context.Context, cmd SaveLessonCommand) (*SaveLessonResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("lesson", "Save", shared.ErrValidation, "validation failed", err)
	}

	info, err := h.lessons.GetInfo(ctx, cmd.LessonInfoID)
	if err != nil {
		return nil, fmt.Errorf("save_lesson: failed to get lesson info: %w", err)
	}
	if info == nil {
		return nil, shared.ErrLessonNotFound
	}

	if err := h.lessons.UpsertRecords(ctx, cmd.LessonInfoID, cmd.Records); err != nil {
		return nil, fmt.Errorf("save_lesson: failed to upsert records: %w", err)
	}

	result := &SaveLessonResult{
		LessonInfoID: cmd.LessonInfoID,
		RecordsSaved: len(cmd.Records),
		SavedAt:      time.Now().UTC(),
	}

	credits := lesson.ComputeCredits(*info, cmd.Records)
	if len(credits) == 0 {
		h.publish(shared.NewLessonSavedEvent(cmd.LessonInfoID, len(cmd.Records), 0, 0))
		return result, nil
	}

	deltas := make([]learner.XPDelta, 0, len(credits))
	for _, c := range credits {
		deltas = append(deltas, learner.XPDelta{LearnerID: c.LearnerID, Delta: learner.XP(c.Delta)})
	}

	rows := h.xpCounter.BatchIncrementXP(ctx, deltas)

	result.Credits = make([]CreditRow, 0, len(rows))
	for i, row := range rows {
		cr := CreditRow{
			LearnerID: row.LearnerID,
			Delta:     credits[i].Delta,
			NewTotal:  int(row.NewTotal),
			Err:       row.Err,
		}
		result.Credits = append(result.Credits, cr)

		if row.Err == nil {
			h.publish(shared.NewXPCreditedEvent(row.LearnerID, cr.Delta, cr.NewTotal, "lesson"))
		}
	}

	h.publish(shared.NewLessonSavedEvent(
		cmd.LessonInfoID,
		len(cmd.Records),
		result.CreditedCount(),
		result.FailedCount(),
	))

	return result, nil
}

func (h *SaveLessonHandler) publish(event shared.Event) {
	if h.events != nil {
		_ = h.events.Publish(event)
	}
}
