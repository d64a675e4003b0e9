// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION PROGRESS QUERY
// Отдаёт актуальный прогресс сессии для экрана ученика. Материализованного
// представления нет: прогресс пересчитывается из сырых данных при каждом
// запросе и сливается с сохранённым снапшотом, чтобы ученик никогда не
// увидел откат. Запрос ничего не пишет и безопасен для повторов.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionProgressQuery содержит параметры запроса прогресса сессии.
type GetSessionProgressQuery struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// SessionID - идентификатор сессии.
	SessionID string

	// SkipCache - не читать из кеша (например, сразу после записи).
	SkipCache bool
}

// Validate проверяет корректность параметров.
func (q GetSessionProgressQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("get_session_progress: learner_id is required")
	}
	if q.SessionID == "" {
		return errors.New("get_session_progress: session_id is required")
	}
	return nil
}

// SessionProgressDTO - прогресс сессии для UI.
type SessionProgressDTO struct {
	// SessionID - идентификатор сессии.
	SessionID string `json:"session_id"`

	// Total - количество назначений.
	Total int `json:"total"`

	// CompletedCount - завершено назначений.
	CompletedCount int `json:"completed_count"`

	// Percentage - слитый процент, 0-100.
	Percentage int `json:"percentage"`

	// XPEarned - слитый XP сессии.
	XPEarned int `json:"xp_earned"`

	// Status - слитый статус.
	Status progress.SessionStatus `json:"status"`

	// RewardClaimable - сессия завершена с требуемым качеством.
	// Не гарантирует выдачу: награда могла быть уже получена.
	RewardClaimable bool `json:"reward_claimable"`

	// ComputedAt - время пересчёта.
	ComputedAt time.Time `json:"computed_at"`
}

// RollupCache кеширует собранные DTO между загрузками экрана.
// Реализация - в infrastructure/persistence/redis; nil-кеш допустим.
type RollupCache interface {
	// GetSessionProgress возвращает закешированный DTO или (nil, nil).
	GetSessionProgress(ctx context.Context, learnerID, sessionID string) (*SessionProgressDTO, error)

	// SetSessionProgress кладёт DTO в кеш с TTL реализации.
	SetSessionProgress(ctx context.Context, learnerID string, dto *SessionProgressDTO) error

	// InvalidateLearner сбрасывает кеш ученика после любой записи.
	InvalidateLearner(ctx context.Context, learnerID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionProgressHandler обрабатывает GetSessionProgressQuery.
type GetSessionProgressHandler struct {
	assignments progress.AssignmentReader
	completions progress.CompletionReader
	snapshots   progress.SnapshotRepository
	cache       RollupCache
	clock       progress.Clock
}

// NewGetSessionProgressHandler создаёт новый GetSessionProgressHandler.
// cache может быть nil - тогда каждый запрос идёт в хранилище.
func NewGetSessionProgressHandler(
	assignments progress.AssignmentReader,
	completions progress.CompletionReader,
	snapshots progress.SnapshotRepository,
	cache RollupCache,
	clock progress.Clock,
) *GetSessionProgressHandler {
	if clock == nil {
		clock = progress.UTCClock{}
	}

	return &GetSessionProgressHandler{
		assignments: assignments,
		completions: completions,
		snapshots:   snapshots,
		cache:       cache,
		clock:       clock,
	}
}

// Handle выполняет запрос.
func (h *GetSessionProgressHandler) Handle(ctx context.Context, q GetSessionProgressQuery) (*SessionProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("progress", "GetSessionProgress", shared.ErrValidation, "validation failed", err)
	}

	if h.cache != nil && !q.SkipCache {
		// Ошибка кеша не роняет запрос - идём в хранилище.
		if dto, err := h.cache.GetSessionProgress(ctx, q.LearnerID, q.SessionID); err == nil && dto != nil {
			return dto, nil
		}
	}

	assignments, err := h.assignments.ListAssignments(ctx, q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get_session_progress: failed to list assignments: %w", err)
	}

	exerciseIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		exerciseIDs = append(exerciseIDs, a.ExerciseID)
	}

	completions, err := h.completions.ListCompletions(ctx, q.LearnerID, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("get_session_progress: failed to list completions: %w", err)
	}

	prior, err := h.snapshots.GetSnapshot(ctx, q.LearnerID, q.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get_session_progress: failed to get snapshot: %w", err)
	}

	now := h.clock.Now()
	rollup, merged := progress.ComputeSessionProgress(
		q.LearnerID, q.SessionID, assignments, completions, prior, now,
	)

	dto := &SessionProgressDTO{
		SessionID:       q.SessionID,
		Total:           rollup.Total,
		CompletedCount:  rollup.CompletedCount,
		Percentage:      merged.Percentage,
		XPEarned:        merged.XPEarned,
		Status:          merged.Status,
		RewardClaimable: progress.IsSessionComplete(assignments, completions),
		ComputedAt:      now,
	}

	if h.cache != nil {
		_ = h.cache.SetSessionProgress(ctx, q.LearnerID, dto)
	}

	return dto, nil
}
