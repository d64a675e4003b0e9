package query

import (
	"context"
	"fmt"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
	"github.com/questhall/questhall-progress-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RECONCILIATION REPORT QUERY
// Отчёт о наградах, у которых запись есть, а подтверждения начисления нет.
// Такая пара возникает, если инкремент XP упал после успешной вставки
// записи. Отчёт только показывает проблему: политика восстановления
// сознательно не зашита в систему.
// ══════════════════════════════════════════════════════════════════════════════

// GetReconciliationReportQuery содержит параметры отчёта.
type GetReconciliationReportQuery struct {
	// OlderThan - учитывать только записи старше этого возраста.
	// Отсекает награды, у которых начисление ещё просто в полёте.
	// Ноль означает настроенный возраст по умолчанию.
	OlderThan time.Duration
}

// ReconciliationRow - одна подозрительная запись.
type ReconciliationRow struct {
	// LearnerID - идентификатор ученика.
	LearnerID string `json:"learner_id"`

	// SessionID - идентификатор сессии.
	SessionID string `json:"session_id"`

	// XPAwarded - сумма, которая должна была быть начислена.
	XPAwarded int `json:"xp_awarded"`

	// ClaimedAt - когда запись создана.
	ClaimedAt time.Time `json:"claimed_at"`
}

// ReconciliationReportDTO - отчёт сверки.
type ReconciliationReportDTO struct {
	// Rows - записи без подтверждённого начисления.
	Rows []ReconciliationRow `json:"rows"`

	// GeneratedAt - время построения отчёта.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetReconciliationReportHandler обрабатывает GetReconciliationReportQuery.
type GetReconciliationReportHandler struct {
	claims reward.ClaimRepository

	// defaultMinAge используется, когда запрос не задаёт OlderThan.
	defaultMinAge time.Duration

	// retrier повторяет чтение реестра: запрос чистый, повтор безопасен.
	retrier *retry.Retrier
}

// NewGetReconciliationReportHandler создаёт новый GetReconciliationReportHandler.
// Неположительный minAge означает 5 минут.
func NewGetReconciliationReportHandler(claims reward.ClaimRepository, minAge time.Duration) *GetReconciliationReportHandler {
	if minAge <= 0 {
		minAge = 5 * time.Minute
	}
	return &GetReconciliationReportHandler{
		claims:        claims,
		defaultMinAge: minAge,
		retrier:       retry.DatabaseRetrier(),
	}
}

// Handle выполняет запрос.
func (h *GetReconciliationReportHandler) Handle(ctx context.Context, q GetReconciliationReportQuery) (*ReconciliationReportDTO, error) {
	olderThan := q.OlderThan
	if olderThan <= 0 {
		olderThan = h.defaultMinAge
	}

	now := time.Now().UTC()
	var claims []reward.Claim
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var listErr error
		claims, listErr = h.claims.ListUncredited(ctx, now.Add(-olderThan))
		return retry.Retryable(listErr)
	})
	if err != nil {
		return nil, fmt.Errorf("get_reconciliation_report: failed to list uncredited claims: %w", err)
	}

	report := &ReconciliationReportDTO{
		Rows:        make([]ReconciliationRow, 0, len(claims)),
		GeneratedAt: now,
	}

	for _, c := range claims {
		report.Rows = append(report.Rows, ReconciliationRow{
			LearnerID: c.LearnerID,
			SessionID: c.SessionID,
			XPAwarded: c.XPAwarded,
			ClaimedAt: c.ClaimedAt,
		})
	}

	return report, nil
}
