package reward

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// InsertOutcome - результат попытки вставить запись о награде.
type InsertOutcome int

const (
	// InsertCreated - запись создана, этот вызов выиграл гонку.
	InsertCreated InsertOutcome = iota

	// InsertConflict - запись уже существовала, награда была выдана раньше.
	InsertConflict
)

// ClaimRepository хранит записи о наградах.
// Уникальный индекс по (learner_id, session_id) - единственная точка
// разрешения гонок: из N конкурентных попыток ровно одна получает
// InsertCreated, остальные - InsertConflict без каких-либо побочных эффектов.
type ClaimRepository interface {
	// InsertIfAbsent вставляет запись, если её ещё нет.
	// Конфликт уникальности - это НЕ ошибка, а InsertConflict.
	InsertIfAbsent(ctx context.Context, c Claim) (InsertOutcome, error)

	// Get возвращает запись о награде.
	// Возвращает (nil, nil), если записи нет.
	Get(ctx context.Context, learnerID, sessionID string) (*Claim, error)

	// ListByLearner возвращает все награды ученика.
	ListByLearner(ctx context.Context, learnerID string) ([]Claim, error)

	// MarkCredited подтверждает успешное начисление XP по записи.
	MarkCredited(ctx context.Context, learnerID, sessionID string, at time.Time) error

	// ListUncredited возвращает записи без подтверждённого начисления,
	// созданные раньше указанного момента - вход для отчёта сверки.
	// Ничего не чинит: политика восстановления определяется вне системы.
	ListUncredited(ctx context.Context, olderThan time.Time) ([]Claim, error)
}
