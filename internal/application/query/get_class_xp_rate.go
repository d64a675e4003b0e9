package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET CLASS XP RATE QUERY
// Сводит оценки преподавателя за период в одну сравнимую оценку класса
// по шкале 0-10. Неоценённые уроки не тянут среднее вниз: они просто
// не входят в знаменатель.
// ══════════════════════════════════════════════════════════════════════════════

// GetClassXPRateQuery содержит параметры запроса оценки класса.
type GetClassXPRateQuery struct {
	// CourseID - идентификатор курса (класса).
	CourseID string

	// From и To ограничивают период. Нулевые значения означают
	// "с начала" и "по сегодня" соответственно.
	From time.Time
	To   time.Time
}

// Validate проверяет корректность параметров.
func (q *GetClassXPRateQuery) Validate() error {
	if q.CourseID == "" {
		return errors.New("get_class_xp_rate: course_id is required")
	}
	if q.To.IsZero() {
		q.To = time.Now().UTC()
	}
	if !q.From.IsZero() && q.From.After(q.To) {
		return errors.New("get_class_xp_rate: from is after to")
	}
	return nil
}

// ClassXPRateDTO - оценка класса для отчёта преподавателя.
type ClassXPRateDTO struct {
	// CourseID - идентификатор курса.
	CourseID string `json:"course_id"`

	// Rate - оценка класса, 0.0-10.0, один знак после запятой.
	Rate float64 `json:"rate"`

	// Lessons - количество уроков в периоде.
	Lessons int `json:"lessons"`

	// Records - количество записей, вошедших в расчёт.
	Records int `json:"records"`
}

// GetClassXPRateHandler обрабатывает GetClassXPRateQuery.
type GetClassXPRateHandler struct {
	lessons lesson.Repository
}

// NewGetClassXPRateHandler создаёт новый GetClassXPRateHandler.
func NewGetClassXPRateHandler(lessons lesson.Repository) *GetClassXPRateHandler {
	return &GetClassXPRateHandler{lessons: lessons}
}

// Handle выполняет запрос.
func (h *GetClassXPRateHandler) Handle(ctx context.Context, q GetClassXPRateQuery) (*ClassXPRateDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("lesson", "GetClassXPRate", shared.ErrValidation, "validation failed", err)
	}

	infos, err := h.lessons.ListInfosByCourse(ctx, q.CourseID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("get_class_xp_rate: failed to list lessons: %w", err)
	}

	records, err := h.lessons.ListRecordsByCourse(ctx, q.CourseID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("get_class_xp_rate: failed to list records: %w", err)
	}

	return &ClassXPRateDTO{
		CourseID: q.CourseID,
		Rate:     lesson.CalcClassXPRate(records),
		Lessons:  len(infos),
		Records:  len(records),
	}, nil
}
