package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
	"github.com/questhall/questhall-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH PROGRESS COMMAND
// Пересчитывает прогресс сессии из сырых данных и сливает его в снапшот.
// Вызывается при каждой загрузке экрана сессии: материализованного
// представления на сервере нет, актуальность достигается пересчётом.
// Пересчёт - чистая функция от прочитанных данных, поэтому чтения можно
// повторять без ограничений.
// ══════════════════════════════════════════════════════════════════════════════

// RefreshProgressCommand содержит параметры пересчёта.
type RefreshProgressCommand struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// SessionID - сессия для пересчёта.
	SessionID string

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c RefreshProgressCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("refresh_progress: learner_id is required")
	}
	if c.SessionID == "" {
		return errors.New("refresh_progress: session_id is required")
	}
	return nil
}

// RefreshProgressResult содержит результат пересчёта.
type RefreshProgressResult struct {
	// Rollup - свежий пересчёт до слияния.
	Rollup progress.Rollup

	// Snapshot - слитый снапшот, сохранённый в хранилище.
	Snapshot progress.Snapshot

	// NewlyCompleted - сессия впервые достигла статуса "completed".
	NewlyCompleted bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RefreshProgressHandler обрабатывает RefreshProgressCommand.
type RefreshProgressHandler struct {
	assignments progress.AssignmentReader
	completions progress.CompletionReader
	snapshots   progress.SnapshotRepository
	learners    learner.Repository
	events      shared.EventPublisher
	clock       progress.Clock
	retrier     *retry.Retrier
}

// NewRefreshProgressHandler создаёт новый RefreshProgressHandler.
func NewRefreshProgressHandler(
	assignments progress.AssignmentReader,
	completions progress.CompletionReader,
	snapshots progress.SnapshotRepository,
	learners learner.Repository,
	events shared.EventPublisher,
	clock progress.Clock,
) *RefreshProgressHandler {
	if clock == nil {
		clock = progress.UTCClock{}
	}

	return &RefreshProgressHandler{
		assignments: assignments,
		completions: completions,
		snapshots:   snapshots,
		learners:    learners,
		events:      events,
		clock:       clock,
		// Чтения пересчёта безопасно повторять безусловно.
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithRetryIf(func(err error) bool { return !shared.IsTerminal(err) }),
		),
	}
}

// Handle выполняет пересчёт и слияние.
func (h *RefreshProgressHandler) Handle(ctx context.Context, cmd RefreshProgressCommand) (*RefreshProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("progress", "Refresh", shared.ErrValidation, "validation failed", err)
	}

	var (
		assignments []progress.Assignment
		completions []progress.Completion
		prior       *progress.Snapshot
	)

	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var err error

		assignments, err = h.assignments.ListAssignments(ctx, cmd.SessionID)
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}

		exerciseIDs := make([]string, 0, len(assignments))
		for _, a := range assignments {
			exerciseIDs = append(exerciseIDs, a.ExerciseID)
		}

		completions, err = h.completions.ListCompletions(ctx, cmd.LearnerID, exerciseIDs)
		if err != nil {
			return fmt.Errorf("list completions: %w", err)
		}

		prior, err = h.snapshots.GetSnapshot(ctx, cmd.LearnerID, cmd.SessionID)
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refresh_progress: %w", err)
	}

	rollup, merged := progress.ComputeSessionProgress(
		cmd.LearnerID, cmd.SessionID, assignments, completions, prior, h.clock.Now(),
	)

	if err := h.snapshots.UpsertSnapshot(ctx, merged); err != nil {
		return nil, fmt.Errorf("refresh_progress: failed to upsert snapshot: %w", err)
	}

	result := &RefreshProgressResult{
		Rollup:   rollup,
		Snapshot: merged,
	}

	wasCompleted := prior != nil && prior.Status == progress.SessionCompleted
	if merged.Status == progress.SessionCompleted && !wasCompleted {
		result.NewlyCompleted = true
		h.updateStreak(ctx, cmd.LearnerID)
		h.publish(shared.NewSessionCompletedEvent(
			cmd.LearnerID, cmd.SessionID, merged.XPEarned, merged.Percentage,
		))
	}

	oldPct := 0
	if prior != nil {
		oldPct = prior.Percentage
	}
	if merged.Percentage != oldPct {
		h.publish(shared.NewSnapshotMergedEvent(cmd.LearnerID, cmd.SessionID, oldPct, merged.Percentage))
	}

	return result, nil
}

// updateStreak продлевает серию ученика при первом завершении сессии за день.
// Ошибка серии не роняет пересчёт: прогресс важнее счётчика.
func (h *RefreshProgressHandler) updateStreak(ctx context.Context, learnerID string) {
	if h.learners == nil {
		return
	}

	l, err := h.learners.GetByID(ctx, learnerID)
	if err != nil || l == nil {
		return
	}

	before := l.StreakCount
	l.RecordCompletion(h.clock.Now())
	if l.StreakCount == before {
		return
	}

	if err := h.learners.Update(ctx, l); err == nil {
		h.publish(shared.NewStreakUpdatedEvent(learnerID, l.StreakCount))
	}
}

func (h *RefreshProgressHandler) publish(event shared.Event) {
	if h.events != nil {
		_ = h.events.Publish(event)
	}
}
