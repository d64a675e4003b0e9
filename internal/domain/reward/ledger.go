// Package reward содержит логику одноразовых наград за завершённые сессии.
// Ключевой инвариант: не больше одной награды на пару (ученик, сессия),
// и существование записи о награде означает ровно одно начисление XP.
package reward

import (
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FORMULA
// ══════════════════════════════════════════════════════════════════════════════

const (
	// BaseXP - фиксированная часть награды.
	BaseXP = 5

	// PerExerciseXP - надбавка за каждое упражнение сессии.
	PerExerciseXP = 3

	// RollMin и RollMax - границы случайной части (включительно).
	RollMin = 1
	RollMax = 10
)

// Amount вычисляет размер награды для сессии с exerciseCount упражнениями
// и случайным броском roll. Диапазон результата: [8+3n, 14+3n].
func Amount(exerciseCount, roll int) int {
	return BaseXP + PerExerciseXP*exerciseCount + roll
}

// Roller - источник случайного броска для награды.
// Интерфейс позволяет подменять генератор в тестах.
type Roller interface {
	// Roll возвращает равномерное целое в [RollMin, RollMax].
	Roll() int
}

// RollerFunc адаптирует функцию под интерфейс Roller.
type RollerFunc func() int

// Roll реализует Roller.
func (f RollerFunc) Roll() int { return f() }

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Claim - запись о выданной награде. Сумма и время выдачи неизменяемы
// после создания; единственное изменяемое поле - отметка о начислении.
type Claim struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// SessionID - идентификатор сессии.
	SessionID string

	// XPAwarded - начисленный XP.
	XPAwarded int

	// ClaimedAt - время выдачи.
	ClaimedAt time.Time

	// CreditedAt - время успешного начисления XP. nil означает, что
	// запись есть, а начисление не подтверждено: такая пара попадает
	// в отчёт сверки (см. ErrAlreadyClaimed - повтор начисления запрещён).
	CreditedAt *time.Time
}

// IsCredited возвращает true, если начисление подтверждено.
func (c Claim) IsCredited() bool { return c.CreditedAt != nil }

// ErrInvalidClaim - невалидные параметры награды.
var ErrInvalidClaim = errors.New("invalid claim: learner, session and positive xp required")

// NewClaim создаёт запись о награде с валидацией.
func NewClaim(learnerID, sessionID string, xpAwarded int, at time.Time) (Claim, error) {
	if learnerID == "" || sessionID == "" || xpAwarded <= 0 {
		return Claim{}, ErrInvalidClaim
	}
	return Claim{
		LearnerID: learnerID,
		SessionID: sessionID,
		XPAwarded: xpAwarded,
		ClaimedAt: at,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD CARDS (косметика выбора из трёх карт)
// ══════════════════════════════════════════════════════════════════════════════

// CardKind различает авторитетную сумму и декорации.
// Авторитетная сумма фиксируется ДО показа карт и только она попадает
// в запись о награде и в начисление. Суммы-приманки живут только в UI
// и никогда не сохраняются - типом это разделено, чтобы приманку нельзя
// было случайно провести по пути начисления.
type CardKind string

const (
	// CardAuthoritative - карта с реальной суммой награды.
	CardAuthoritative CardKind = "authoritative"

	// CardDecoy - карта-приманка, сумма чисто косметическая.
	CardDecoy CardKind = "decoy"
)

// Card - одна карта в раскладе.
type Card struct {
	// Kind - вид карты.
	Kind CardKind

	// Amount - показанная сумма.
	Amount int
}

// IsAuthoritative возвращает true для карты с реальной суммой.
func (c Card) IsAuthoritative() bool { return c.Kind == CardAuthoritative }

// DeckSize - количество карт в раскладе.
const DeckSize = 3

// BuildDeck собирает расклад из трёх карт: авторитетная сумма на позиции
// pickedIndex, приманки на остальных. Приманки считаются той же формулой
// с независимыми бросками - чтобы на просвет выглядели правдоподобно.
func BuildDeck(authoritativeAmount, exerciseCount, pickedIndex int, roller Roller) [DeckSize]Card {
	if pickedIndex < 0 || pickedIndex >= DeckSize {
		pickedIndex = 0
	}

	var deck [DeckSize]Card
	for i := range deck {
		if i == pickedIndex {
			deck[i] = Card{Kind: CardAuthoritative, Amount: authoritativeAmount}
			continue
		}
		deck[i] = Card{Kind: CardDecoy, Amount: Amount(exerciseCount, roller.Roll())}
	}
	return deck
}
