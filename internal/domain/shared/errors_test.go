package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_SentinelsClassify(t *testing.T) {
	assert.True(t, IsNotFound(ErrLearnerNotFound))
	assert.True(t, IsAlreadyExists(ErrLearnerAlreadyExists))
	assert.True(t, IsAlreadyExists(ErrLessonAlreadyExists))
	assert.True(t, IsNotFound(ErrSnapshotNotFound))

	assert.False(t, IsNotFound(ErrLearnerAlreadyExists))
	assert.False(t, IsAlreadyExists(ErrLearnerNotFound))
}

func TestDomainError_SurvivesWrapping(t *testing.T) {
	// Repositories return sentinels and upper layers add context with
	// fmt.Errorf; classification must survive the wrapping.
	wrapped := fmt.Errorf("refresh streak: %w", ErrLearnerNotFound)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.True(t, errors.Is(wrapped, ErrLearnerNotFound))
}

func TestWrapError_ChainsToKindAndCause(t *testing.T) {
	cause := errors.New("column missing")
	err := WrapError("lesson", "Save", ErrValidation, "bad record", cause)

	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "lesson.Save")
}
