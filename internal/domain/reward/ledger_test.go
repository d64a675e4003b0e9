package reward

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_Bounds(t *testing.T) {
	for n := 0; n <= 12; n++ {
		lo := Amount(n, RollMin)
		hi := Amount(n, RollMax)

		assert.Equal(t, 8+3*n, lo)
		assert.Equal(t, 14+3*n, hi)
	}
}

func TestAmount_AllRollsInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	roller := RollerFunc(func() int { return RollMin + rng.Intn(RollMax-RollMin+1) })

	const n = 4
	for i := 0; i < 1000; i++ {
		got := Amount(n, roller.Roll())
		assert.GreaterOrEqual(t, got, 8+3*n)
		assert.LessOrEqual(t, got, 14+3*n)
	}
}

func TestNewClaim(t *testing.T) {
	now := time.Now().UTC()

	c, err := NewClaim("u-1", "s-1", 23, now)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.LearnerID)
	assert.Equal(t, "s-1", c.SessionID)
	assert.Equal(t, 23, c.XPAwarded)
	assert.Equal(t, now, c.ClaimedAt)

	_, err = NewClaim("", "s-1", 23, now)
	assert.ErrorIs(t, err, ErrInvalidClaim)

	_, err = NewClaim("u-1", "", 23, now)
	assert.ErrorIs(t, err, ErrInvalidClaim)

	_, err = NewClaim("u-1", "s-1", 0, now)
	assert.ErrorIs(t, err, ErrInvalidClaim)
}

func TestBuildDeck(t *testing.T) {
	roller := RollerFunc(func() int { return 7 })

	deck := BuildDeck(23, 4, 1, roller)

	require.Len(t, deck, DeckSize)
	assert.Equal(t, CardDecoy, deck[0].Kind)
	assert.Equal(t, CardAuthoritative, deck[1].Kind)
	assert.Equal(t, CardDecoy, deck[2].Kind)

	// Авторитетная сумма не пересчитывается при сборке расклада.
	assert.Equal(t, 23, deck[1].Amount)
	assert.True(t, deck[1].IsAuthoritative())

	// Приманки считаются той же формулой с независимыми бросками.
	assert.Equal(t, Amount(4, 7), deck[0].Amount)
	assert.Equal(t, Amount(4, 7), deck[2].Amount)
	assert.False(t, deck[0].IsAuthoritative())
}

func TestBuildDeck_ExactlyOneAuthoritative(t *testing.T) {
	roller := RollerFunc(func() int { return 3 })

	for picked := -1; picked <= DeckSize; picked++ {
		deck := BuildDeck(20, 2, picked, roller)

		auth := 0
		for _, c := range deck {
			if c.IsAuthoritative() {
				auth++
			}
		}
		assert.Equal(t, 1, auth, "picked=%d", picked)
	}
}
