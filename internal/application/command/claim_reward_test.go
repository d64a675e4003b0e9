package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

func completedSessionFixture(learnerID, sessionID string, exercises int) (*fakeAssignments, *fakeCompletions) {
	assignments := &fakeAssignments{bySession: map[string][]progress.Assignment{}}
	completions := &fakeCompletions{byLearner: map[string][]progress.Completion{}}

	score := 95
	for i := 0; i < exercises; i++ {
		exID := sessionID + "-ex-" + string(rune('a'+i))
		assignments.bySession[sessionID] = append(assignments.bySession[sessionID], progress.Assignment{
			ExerciseID: exID,
			SessionID:  sessionID,
			OrderIndex: i,
		})
		completions.byLearner[learnerID] = append(completions.byLearner[learnerID], progress.Completion{
			ExerciseID: exID,
			Status:     progress.CompletionCompleted,
			Score:      &score,
		})
	}

	return assignments, completions
}

func newClaimHandler(
	assignments *fakeAssignments,
	completions *fakeCompletions,
	claims *fakeClaims,
	counter *fakeXPCounter,
	events *capturedEvents,
	cfg ClaimRewardHandlerConfig,
) *ClaimRewardHandler {
	return NewClaimRewardHandler(assignments, completions, claims, counter, events, cfg)
}

func TestClaimReward_Success(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 4)
	claims := newFakeClaims()
	counter := newFakeXPCounter()
	events := &capturedEvents{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	h := newClaimHandler(assignments, completions, claims, counter, events, ClaimRewardHandlerConfig{
		Roller: reward.RollerFunc(func() int { return 7 }),
		Clock:  fixedClock{t: now},
	})

	result, err := h.Handle(context.Background(), ClaimRewardCommand{
		LearnerID:       "learner-1",
		SessionID:       "session-1",
		PickedCardIndex: 1,
	})
	require.NoError(t, err)

	// 5 + 3*4 + 7 = 24.
	assert.Equal(t, 24, result.XPAwarded)
	assert.Equal(t, 24, result.NewTotal)
	assert.Equal(t, now, result.ClaimedAt)
	assert.Equal(t, 24, int(counter.total("learner-1")))
	assert.Equal(t, 1, claims.count())

	stored, err := claims.Get(context.Background(), "learner-1", "session-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 24, stored.XPAwarded)
	assert.True(t, stored.IsCredited())

	assert.Len(t, events.ofType(shared.EventRewardClaimed), 1)
	assert.Len(t, events.ofType(shared.EventXPCredited), 1)
}

func TestClaimReward_NotEligible(t *testing.T) {
	learnerID, sessionID := "learner-1", "session-1"
	assignments, completions := completedSessionFixture(learnerID, sessionID, 3)

	// Одно упражнение завершено с баллом ниже порога качества.
	low := 89
	completions.byLearner[learnerID][0].Score = &low

	claims := newFakeClaims()
	counter := newFakeXPCounter()
	h := newClaimHandler(assignments, completions, claims, counter, &capturedEvents{}, ClaimRewardHandlerConfig{})

	_, err := h.Handle(context.Background(), ClaimRewardCommand{LearnerID: learnerID, SessionID: sessionID})
	assert.ErrorIs(t, err, shared.ErrNotEligibleState)
	assert.Equal(t, 0, claims.count())
	assert.Equal(t, 0, int(counter.total(learnerID)))
}

func TestClaimReward_EmptySessionNotEligible(t *testing.T) {
	assignments := &fakeAssignments{bySession: map[string][]progress.Assignment{}}
	completions := &fakeCompletions{byLearner: map[string][]progress.Completion{}}

	h := newClaimHandler(assignments, completions, newFakeClaims(), newFakeXPCounter(), &capturedEvents{}, ClaimRewardHandlerConfig{})

	_, err := h.Handle(context.Background(), ClaimRewardCommand{LearnerID: "learner-1", SessionID: "empty"})
	assert.ErrorIs(t, err, shared.ErrNotEligibleState)
}

func TestClaimReward_SecondClaimRejected(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 2)
	claims := newFakeClaims()
	counter := newFakeXPCounter()

	h := newClaimHandler(assignments, completions, claims, counter, &capturedEvents{}, ClaimRewardHandlerConfig{
		Roller: reward.RollerFunc(func() int { return 5 }),
	})

	cmd := ClaimRewardCommand{LearnerID: "learner-1", SessionID: "session-1"}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	_, err = h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, shared.ErrAlreadyProcessed)

	// Повтор не изменил ни счётчик, ни запись.
	assert.Equal(t, first.XPAwarded, int(counter.total("learner-1")))
	assert.Equal(t, 1, claims.count())
}

func TestClaimReward_ConcurrentClaimsExactlyOneWins(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 5)
	claims := newFakeClaims()
	counter := newFakeXPCounter()

	h := newClaimHandler(assignments, completions, claims, counter, &capturedEvents{}, ClaimRewardHandlerConfig{
		Roller: reward.RollerFunc(func() int { return 3 }),
	})

	const attempts = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Handle(context.Background(), ClaimRewardCommand{
				LearnerID: "learner-1",
				SessionID: "session-1",
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, shared.ErrAlreadyProcessed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Ровно один победитель гонки, остальные получают AlreadyClaimed.
	assert.Equal(t, 1, winners)
	assert.Equal(t, attempts-1, rejected)
	assert.Equal(t, 1, claims.count())

	// XP начислен ровно один раз: 5 + 3*5 + 3 = 23.
	assert.Equal(t, 23, int(counter.total("learner-1")))
	assert.Equal(t, 1, counter.increments)
}

func TestClaimReward_CreditFailureLeavesClaimFlagged(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 2)
	claims := newFakeClaims()
	counter := newFakeXPCounter()
	counter.failFor["learner-1"] = errors.New("connection reset")
	events := &capturedEvents{}

	h := newClaimHandler(assignments, completions, claims, counter, events, ClaimRewardHandlerConfig{
		Roller: reward.RollerFunc(func() int { return 1 }),
	})

	_, err := h.Handle(context.Background(), ClaimRewardCommand{LearnerID: "learner-1", SessionID: "session-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)

	// Запись существует, но не подтверждена - пара попадёт в отчёт сверки.
	stored, getErr := claims.Get(context.Background(), "learner-1", "session-1")
	require.NoError(t, getErr)
	require.NotNil(t, stored)
	assert.False(t, stored.IsCredited())

	uncredited, listErr := claims.ListUncredited(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, listErr)
	assert.Len(t, uncredited, 1)

	assert.Len(t, events.ofType(shared.EventRewardCreditFailed), 1)
	assert.Empty(t, events.ofType(shared.EventRewardClaimed))
}

func TestClaimReward_DeckContainsAuthoritativeAtPickedIndex(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 3)

	h := newClaimHandler(assignments, completions, newFakeClaims(), newFakeXPCounter(), &capturedEvents{}, ClaimRewardHandlerConfig{
		Roller:        reward.RollerFunc(func() int { return 9 }),
		DecoysEnabled: true,
	})

	result, err := h.Handle(context.Background(), ClaimRewardCommand{
		LearnerID:       "learner-1",
		SessionID:       "session-1",
		PickedCardIndex: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, reward.CardAuthoritative, result.Deck[2].Kind)
	assert.Equal(t, result.XPAwarded, result.Deck[2].Amount)

	for i, card := range result.Deck {
		if i == 2 {
			continue
		}
		assert.Equal(t, reward.CardDecoy, card.Kind)
	}
}

func TestClaimReward_DecoysDisabledShowsOnlyPickedCard(t *testing.T) {
	assignments, completions := completedSessionFixture("learner-1", "session-1", 3)

	h := newClaimHandler(assignments, completions, newFakeClaims(), newFakeXPCounter(), &capturedEvents{}, ClaimRewardHandlerConfig{
		Roller: reward.RollerFunc(func() int { return 9 }),
	})

	result, err := h.Handle(context.Background(), ClaimRewardCommand{
		LearnerID:       "learner-1",
		SessionID:       "session-1",
		PickedCardIndex: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, reward.CardAuthoritative, result.Deck[0].Kind)
	assert.Zero(t, result.Deck[1])
	assert.Zero(t, result.Deck[2])
}

func TestClaimReward_Validation(t *testing.T) {
	h := newClaimHandler(
		&fakeAssignments{}, &fakeCompletions{},
		newFakeClaims(), newFakeXPCounter(), &capturedEvents{},
		ClaimRewardHandlerConfig{},
	)

	tests := []struct {
		name string
		cmd  ClaimRewardCommand
	}{
		{"missing learner", ClaimRewardCommand{SessionID: "s"}},
		{"missing session", ClaimRewardCommand{LearnerID: "l"}},
		{"card index negative", ClaimRewardCommand{LearnerID: "l", SessionID: "s", PickedCardIndex: -1}},
		{"card index too big", ClaimRewardCommand{LearnerID: "l", SessionID: "s", PickedCardIndex: reward.DeckSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.Error(t, err)
		})
	}
}
