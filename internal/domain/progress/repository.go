package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentReader читает связи упражнений с сессиями.
// Источник внешний и доступен только на чтение.
type AssignmentReader interface {
	// ListAssignments возвращает назначения сессии в порядке OrderIndex.
	ListAssignments(ctx context.Context, sessionID string) ([]Assignment, error)

	// ListSessionIDs возвращает идентификаторы сессий юнита по порядку.
	ListSessionIDs(ctx context.Context, unitID string) ([]string, error)

	// ListUnitIDs возвращает идентификаторы юнитов курса по порядку.
	ListUnitIDs(ctx context.Context, courseID string) ([]string, error)
}

// CompletionReader читает записи о прохождении упражнений.
type CompletionReader interface {
	// ListCompletions возвращает записи ученика по списку упражнений.
	// Упражнения без записи просто отсутствуют в результате.
	ListCompletions(ctx context.Context, learnerID string, exerciseIDs []string) ([]Completion, error)
}

// SnapshotRepository хранит снапшоты прогресса по сессиям.
type SnapshotRepository interface {
	// GetSnapshot возвращает снапшот пары (ученик, сессия).
	// Возвращает (nil, nil), если снапшота ещё нет - это не ошибка,
	// снапшоты создаются лениво.
	GetSnapshot(ctx context.Context, learnerID, sessionID string) (*Snapshot, error)

	// GetSnapshots возвращает снапшоты ученика по списку сессий.
	// Отсутствующие пары не входят в результат.
	GetSnapshots(ctx context.Context, learnerID string, sessionIDs []string) (map[string]Snapshot, error)

	// UpsertSnapshot сохраняет снапшот. Реализация обязана сливать
	// по максимуму на стороне хранилища, чтобы конкурентные записи
	// не откатывали прогресс.
	UpsertSnapshot(ctx context.Context, s Snapshot) error
}

// Clock отдаёт текущее время. Нужен, чтобы пересчёт оставался
// детерминированным в тестах.
type Clock interface {
	Now() time.Time
}

// UTCClock - продакшен-реализация Clock.
type UTCClock struct{}

// Now возвращает текущее время в UTC.
func (UTCClock) Now() time.Time { return time.Now().UTC() }
