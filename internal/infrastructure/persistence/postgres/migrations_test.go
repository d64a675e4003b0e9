package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrations_VersionsAreSequential(t *testing.T) {
	migrations := GetMigrations()
	require.NotEmpty(t, migrations)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "migration %q out of order", m.Name)
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.UpSQL, "migration %q has no up SQL", m.Name)
		assert.NotEmpty(t, m.DownSQL, "migration %q has no down SQL", m.Name)
	}
}

func TestMigrations_AssignmentsAllowRepeatedExercise(t *testing.T) {
	// The same exercise can be assigned to one session more than once and
	// each row inflates the total, so the key must not collapse such rows.
	assert.Contains(t, migration002Up,
		"PRIMARY KEY (session_id, exercise_id, order_index)")
	assert.NotContains(t, strings.ReplaceAll(migration002Up, " ", ""),
		"PRIMARYKEY(session_id,exercise_id)\n")
}

func TestMigrations_ClaimKeyArbitratesRaces(t *testing.T) {
	// Exactly one claim row per (learner, session); concurrent inserts are
	// resolved by the primary key, not by application locks.
	assert.Contains(t, migration003Up, "PRIMARY KEY (learner_id, session_id)")
	assert.Contains(t, migration003Up, "credited_at TIMESTAMPTZ")
}
