// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REWARD COMMAND
// Выдаёт одноразовую случайную награду за сессию, завершённую с требуемым
// качеством. Сумма фиксируется ДО показа карт; вставка записи о награде
// под уникальным индексом - единственная точка разрешения гонок.
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRewardCommand содержит данные для выдачи награды.
type ClaimRewardCommand struct {
	// LearnerID - внутренний ID ученика.
	LearnerID string

	// SessionID - сессия, за которую запрашивается награда.
	SessionID string

	// PickedCardIndex - какую из трёх карт выбрал ученик (0-2).
	// Влияет только на расклад в ответе, не на сумму.
	PickedCardIndex int

	// CorrelationID для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c ClaimRewardCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("claim_reward: learner_id is required")
	}
	if c.SessionID == "" {
		return errors.New("claim_reward: session_id is required")
	}
	if c.PickedCardIndex < 0 || c.PickedCardIndex >= reward.DeckSize {
		return errors.New("claim_reward: picked card index out of range")
	}
	return nil
}

// ClaimRewardResult содержит результат выдачи награды.
type ClaimRewardResult struct {
	// LearnerID - ID ученика.
	LearnerID string

	// SessionID - ID сессии.
	SessionID string

	// XPAwarded - начисленный XP (авторитетная сумма).
	XPAwarded int

	// NewTotal - новое значение счётчика XP ученика.
	NewTotal int

	// Deck - расклад из трёх карт для UI. Суммы-приманки на невыбранных
	// картах чисто косметические и нигде не сохраняются.
	Deck [reward.DeckSize]reward.Card

	// ClaimedAt - время выдачи.
	ClaimedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRewardHandler обрабатывает ClaimRewardCommand.
type ClaimRewardHandler struct {
	assignments progress.AssignmentReader
	completions progress.CompletionReader
	claims      reward.ClaimRepository
	xpCounter   learner.XPCounter
	events      shared.EventPublisher
	roller      reward.Roller
	clock       progress.Clock

	// decoysEnabled управляет сборкой карт-приманок в ответе.
	decoysEnabled bool

	// qualityThreshold - минимальная оценка упражнения для выдачи награды.
	qualityThreshold int
}

// ClaimRewardHandlerConfig содержит настройки обработчика.
type ClaimRewardHandlerConfig struct {
	// Roller - источник случайности. nil означает math/rand.
	Roller reward.Roller

	// Clock - источник времени. nil означает UTC-часы.
	Clock progress.Clock

	// DecoysEnabled - собирать ли карты-приманки в ответе.
	DecoysEnabled bool

	// QualityThreshold - порог оценки. Ноль означает progress.QualityThreshold.
	QualityThreshold int
}

// NewClaimRewardHandler создаёт новый ClaimRewardHandler.
func NewClaimRewardHandler(
	assignments progress.AssignmentReader,
	completions progress.CompletionReader,
	claims reward.ClaimRepository,
	xpCounter learner.XPCounter,
	events shared.EventPublisher,
	config ClaimRewardHandlerConfig,
) *ClaimRewardHandler {
	roller := config.Roller
	if roller == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		roller = reward.RollerFunc(func() int {
			return reward.RollMin + rng.Intn(reward.RollMax-reward.RollMin+1)
		})
	}

	clock := config.Clock
	if clock == nil {
		clock = progress.UTCClock{}
	}

	threshold := config.QualityThreshold
	if threshold <= 0 {
		threshold = progress.QualityThreshold
	}

	return &ClaimRewardHandler{
		assignments:      assignments,
		completions:      completions,
		claims:           claims,
		xpCounter:        xpCounter,
		events:           events,
		roller:           roller,
		clock:            clock,
		decoysEnabled:    config.DecoysEnabled,
		qualityThreshold: threshold,
	}
}

// Handle выполняет выдачу награды.
//
// Порядок шагов важен:
//  1. проверка существующей записи - быстрый отказ AlreadyClaimed;
//  2. проверка пригодности сессии - отказ NotEligible;
//  3. вычисление суммы (фиксируется до любого показа карт);
//  4. вставка записи под уникальным индексом - при конфликте AlreadyClaimed
//     без каких-либо дальнейших действий (гонку выигрывает ровно один вызов);
//  5. атомарный инкремент счётчика XP.
//
// Если шаг 5 упал после успешного шага 4, пара (запись есть, XP не начислен)
// остаётся несогласованной: публикуется событие для сверки, ничего не
// чинится автоматически.
func (h *ClaimRewardHandler) Handle(ctx context.Context, cmd ClaimRewardCommand) (*ClaimRewardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("reward", "Claim", shared.ErrValidation, "validation failed", err)
	}

	// Шаг 1: быстрая проверка. Настоящая защита от гонок - уникальный
	// индекс на шаге 4, эта проверка лишь экономит работу.
	existing, err := h.claims.Get(ctx, cmd.LearnerID, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("claim_reward: failed to check existing claim: %w", err)
	}
	if existing != nil {
		return nil, shared.ErrAlreadyClaimed
	}

	// Шаг 2: пригодность.
	assignments, err := h.assignments.ListAssignments(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("claim_reward: failed to list assignments: %w", err)
	}

	exerciseIDs := make([]string, 0, len(assignments))
	for _, a := range assignments {
		exerciseIDs = append(exerciseIDs, a.ExerciseID)
	}

	completions, err := h.completions.ListCompletions(ctx, cmd.LearnerID, exerciseIDs)
	if err != nil {
		return nil, fmt.Errorf("claim_reward: failed to list completions: %w", err)
	}

	if !progress.IsSessionCompleteWithThreshold(assignments, completions, h.qualityThreshold) {
		return nil, shared.ErrNotEligible
	}

	// Шаг 3: сумма фиксируется здесь, до какого-либо показа карт.
	now := h.clock.Now()
	xp := reward.Amount(len(assignments), h.roller.Roll())

	claim, err := reward.NewClaim(cmd.LearnerID, cmd.SessionID, xp, now)
	if err != nil {
		return nil, fmt.Errorf("claim_reward: %w", err)
	}

	// Шаг 4: вставка под уникальным индексом.
	outcome, err := h.claims.InsertIfAbsent(ctx, claim)
	if err != nil {
		return nil, fmt.Errorf("claim_reward: failed to insert claim: %w", err)
	}
	if outcome == reward.InsertConflict {
		return nil, shared.ErrAlreadyClaimed
	}

	// Шаг 5: атомарное начисление.
	newTotal, err := h.xpCounter.IncrementXP(ctx, cmd.LearnerID, learner.XP(xp))
	if err != nil {
		// Запись о награде уже существует, а XP не начислен. Флагуем для
		// сверки и возвращаем ошибку как есть - повтор credit-шага снаружи
		// запрещён, политика восстановления не определена.
		h.publish(shared.NewRewardCreditFailedEvent(cmd.LearnerID, cmd.SessionID, xp, err.Error()))
		return nil, shared.WrapError("reward", "Credit", shared.ErrConcurrentModification,
			"claim recorded but xp credit failed, reconciliation required", err)
	}

	// Отметка о начислении - для отчёта сверки. Её потеря не критична:
	// сверка даст ложное срабатывание, а не потерю XP.
	_ = h.claims.MarkCredited(ctx, cmd.LearnerID, cmd.SessionID, h.clock.Now())

	result := &ClaimRewardResult{
		LearnerID: cmd.LearnerID,
		SessionID: cmd.SessionID,
		XPAwarded: xp,
		NewTotal:  int(newTotal),
		ClaimedAt: now,
	}

	if h.decoysEnabled {
		result.Deck = reward.BuildDeck(xp, len(assignments), cmd.PickedCardIndex, h.roller)
	} else {
		// Без приманок UI показывает только выбранную карту.
		result.Deck[cmd.PickedCardIndex] = reward.Card{Kind: reward.CardAuthoritative, Amount: xp}
	}

	h.publish(shared.NewRewardClaimedEvent(cmd.LearnerID, cmd.SessionID, xp, int(newTotal)))
	h.publish(shared.NewXPCreditedEvent(cmd.LearnerID, xp, int(newTotal), "reward"))

	return result, nil
}

func (h *ClaimRewardHandler) publish(event shared.Event) {
	if h.events != nil {
		_ = h.events.Publish(event)
	}
}
