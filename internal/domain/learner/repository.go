package learner

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции для учеников.
type Repository interface {
	// Create создаёт нового ученика.
	// Возвращает shared.ErrLearnerAlreadyExists, если ученик уже существует.
	Create(ctx context.Context, l *Learner) error

	// GetByID возвращает ученика по внутреннему ID.
	// Возвращает shared.ErrLearnerNotFound, если ученик не найден.
	GetByID(ctx context.Context, id string) (*Learner, error)

	// GetByIDs возвращает учеников по списку ID.
	GetByIDs(ctx context.Context, ids []string) ([]*Learner, error)

	// Update обновляет данные ученика (имя, серию).
	// Поле CurrentXP этим методом НЕ пишется - только через IncrementXP.
	Update(ctx context.Context, l *Learner) error
}

// XPCounter определяет единственный разрешённый способ записи XP.
// Инкремент выполняется атомарно на стороне хранилища
// ("UPDATE ... SET xp = xp + delta"), никогда через read-modify-write.
type XPCounter interface {
	// IncrementXP атомарно увеличивает XP ученика и возвращает новое значение.
	// Delta должна быть положительной.
	IncrementXP(ctx context.Context, learnerID string, delta XP) (XP, error)

	// BatchIncrementXP применяет независимые инкременты для нескольких
	// учеников. Ошибки отдельных строк не откатывают остальные.
	// Результаты возвращаются строго в порядке deltas.
	BatchIncrementXP(ctx context.Context, deltas []XPDelta) []XPResult
}

// XPDelta - один инкремент для одного ученика.
type XPDelta struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// Delta - величина инкремента (строго положительная).
	Delta XP
}

// XPResult - результат одного инкремента из пакета.
type XPResult struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// NewTotal - новое значение счётчика (если Err == nil).
	NewTotal XP

	// Err - ошибка этой строки, не влияющая на остальные.
	Err error
}
