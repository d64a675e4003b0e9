package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET UNIT / COURSE PROGRESS QUERIES
// Агрегация прогресса вверх по иерархии: юнит - среднее арифметическое
// процентов его сессий и сумма их XP, курс - то же по юнитам. Среднее
// по сессиям, а не по упражнениям: каждая сессия весит одинаково.
// Агрегаты строятся по сохранённым снапшотам: они уже слиты по максимуму,
// поэтому и агрегат не откатывается.
// ══════════════════════════════════════════════════════════════════════════════

// GetUnitProgressQuery содержит параметры запроса прогресса юнита.
type GetUnitProgressQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// UnitID - идентификатор юнита.
	UnitID string
}

// Validate проверяет корректность параметров.
func (q GetUnitProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("get_unit_progress: learner_id is required")
	}
	if q.UnitID == "" {
		return errors.New("get_unit_progress: unit_id is required")
	}
	return nil
}

// UnitProgressDTO - прогресс юнита для UI.
type UnitProgressDTO struct {
	// UnitID - идентификатор юнита.
	UnitID string `json:"unit_id"`

	// Percentage - среднее процентов сессий, 0-100.
	Percentage int `json:"percentage"`

	// XPEarned - сумма XP сессий.
	XPEarned int `json:"xp_earned"`

	// Status - производный статус.
	Status progress.SessionStatus `json:"status"`

	// Sessions - количество сессий юнита.
	Sessions int `json:"sessions"`
}

// GetUnitProgressHandler обрабатывает GetUnitProgressQuery.
type GetUnitProgressHandler struct {
	assignments progress.AssignmentReader
	snapshots   progress.SnapshotRepository
}

// NewGetUnitProgressHandler создаёт новый GetUnitProgressHandler.
func NewGetUnitProgressHandler(
	assignments progress.AssignmentReader,
	snapshots progress.SnapshotRepository,
) *GetUnitProgressHandler {
	return &GetUnitProgressHandler{
		assignments: assignments,
		snapshots:   snapshots,
	}
}

// Handle выполняет запрос.
func (h *GetUnitProgressHandler) Handle(ctx context.Context, q GetUnitProgressQuery) (*UnitProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("progress", "GetUnitProgress", shared.ErrValidation, "validation failed", err)
	}

	agg, sessions, err := h.aggregateUnit(ctx, q.LearnerID, q.UnitID)
	if err != nil {
		return nil, err
	}

	return &UnitProgressDTO{
		UnitID:     q.UnitID,
		Percentage: agg.Percentage,
		XPEarned:   agg.XPEarned,
		Status:     agg.Status,
		Sessions:   sessions,
	}, nil
}

// aggregateUnit собирает агрегат юнита из снапшотов его сессий.
// Сессии без снапшота участвуют как пустые: ноль процентов, ноль XP.
func (h *GetUnitProgressHandler) aggregateUnit(ctx context.Context, learnerID, unitID string) (progress.AggregateProgress, int, error) {
	sessionIDs, err := h.assignments.ListSessionIDs(ctx, unitID)
	if err != nil {
		return progress.AggregateProgress{}, 0, fmt.Errorf("get_unit_progress: failed to list sessions: %w", err)
	}

	snapshots, err := h.snapshots.GetSnapshots(ctx, learnerID, sessionIDs)
	if err != nil {
		return progress.AggregateProgress{}, 0, fmt.Errorf("get_unit_progress: failed to get snapshots: %w", err)
	}

	children := make([]progress.Snapshot, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		if s, ok := snapshots[id]; ok {
			children = append(children, s)
			continue
		}
		children = append(children, progress.Snapshot{
			LearnerID: learnerID,
			SessionID: id,
			Status:    progress.SessionNotStarted,
		})
	}

	return progress.ComputeUnitProgress(children), len(sessionIDs), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseProgressQuery содержит параметры запроса прогресса курса.
type GetCourseProgressQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// CourseID - идентификатор курса.
	CourseID string
}

// Validate проверяет корректность параметров.
func (q GetCourseProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("get_course_progress: learner_id is required")
	}
	if q.CourseID == "" {
		return errors.New("get_course_progress: course_id is required")
	}
	return nil
}

// CourseProgressDTO - прогресс курса для UI.
type CourseProgressDTO struct {
	// CourseID - идентификатор курса.
	CourseID string `json:"course_id"`

	// Percentage - среднее процентов юнитов, 0-100.
	Percentage int `json:"percentage"`

	// XPEarned - сумма XP юнитов.
	XPEarned int `json:"xp_earned"`

	// Status - производный статус.
	Status progress.SessionStatus `json:"status"`

	// Units - прогресс по юнитам в порядке курса.
	Units []UnitProgressDTO `json:"units"`
}

// GetCourseProgressHandler обрабатывает GetCourseProgressQuery.
type GetCourseProgressHandler struct {
	assignments progress.AssignmentReader
	units       *GetUnitProgressHandler
}

// NewGetCourseProgressHandler создаёт новый GetCourseProgressHandler.
func NewGetCourseProgressHandler(
	assignments progress.AssignmentReader,
	snapshots progress.SnapshotRepository,
) *GetCourseProgressHandler {
	return &GetCourseProgressHandler{
		assignments: assignments,
		units:       NewGetUnitProgressHandler(assignments, snapshots),
	}
}

// Handle выполняет запрос.
func (h *GetCourseProgressHandler) Handle(ctx context.Context, q GetCourseProgressQuery) (*CourseProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("progress", "GetCourseProgress", shared.ErrValidation, "validation failed", err)
	}

	unitIDs, err := h.assignments.ListUnitIDs(ctx, q.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get_course_progress: failed to list units: %w", err)
	}

	dto := &CourseProgressDTO{
		CourseID: q.CourseID,
		Units:    make([]UnitProgressDTO, 0, len(unitIDs)),
	}

	aggs := make([]progress.AggregateProgress, 0, len(unitIDs))
	for _, unitID := range unitIDs {
		agg, sessions, err := h.units.aggregateUnit(ctx, q.LearnerID, unitID)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
		dto.Units = append(dto.Units, UnitProgressDTO{
			UnitID:     unitID,
			Percentage: agg.Percentage,
			XPEarned:   agg.XPEarned,
			Status:     agg.Status,
			Sessions:   sessions,
		})
	}

	course := progress.ComputeCourseProgress(aggs)
	dto.Percentage = course.Percentage
	dto.XPEarned = course.XPEarned
	dto.Status = course.Status

	return dto, nil
}
