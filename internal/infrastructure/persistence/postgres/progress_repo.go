// Package postgres implements the PostgreSQL persistence layer for Questhall
// Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/questhall/questhall-progress-hub/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSIGNMENT READER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AssignmentRepository implements progress.AssignmentReader for PostgreSQL.
// Assignments are stored flattened with their unit and course IDs so the
// hierarchy can be walked without joins.
type AssignmentRepository struct {
	conn *Connection
}

// NewAssignmentRepository creates a new AssignmentRepository.
func NewAssignmentRepository(conn *Connection) *AssignmentRepository {
	return &AssignmentRepository{conn: conn}
}

// ListAssignments returns the assignments of a session in order.
func (r *AssignmentRepository) ListAssignments(ctx context.Context, sessionID string) ([]progress.Assignment, error) {
	query := `
		SELECT exercise_id, session_id, order_index, xp_reward
		FROM assignments
		WHERE session_id = $1
		ORDER BY order_index ASC
	`

	rows, err := r.conn.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []progress.Assignment
	for rows.Next() {
		var a progress.Assignment
		if err := rows.Scan(&a.ExerciseID, &a.SessionID, &a.OrderIndex, &a.XPReward); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// ListSessionIDs returns the distinct session IDs of a unit in order.
func (r *AssignmentRepository) ListSessionIDs(ctx context.Context, unitID string) ([]string, error) {
	query := `
		SELECT session_id
		FROM assignments
		WHERE unit_id = $1
		GROUP BY session_id
		ORDER BY MIN(order_index) ASC, session_id ASC
	`

	return r.queryIDs(ctx, query, unitID)
}

// ListUnitIDs returns the distinct unit IDs of a course in order.
func (r *AssignmentRepository) ListUnitIDs(ctx context.Context, courseID string) ([]string, error) {
	query := `
		SELECT unit_id
		FROM assignments
		WHERE course_id = $1
		GROUP BY unit_id
		ORDER BY MIN(order_index) ASC, unit_id ASC
	`

	return r.queryIDs(ctx, query, courseID)
}

func (r *AssignmentRepository) queryIDs(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := r.conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION READER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements progress.CompletionReader for PostgreSQL.
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

// ListCompletions returns a learner's completion records for the given exercises.
// Exercises without a record are simply absent from the result.
func (r *CompletionRepository) ListCompletions(ctx context.Context, learnerID string, exerciseIDs []string) ([]progress.Completion, error) {
	if len(exerciseIDs) == 0 {
		return []progress.Completion{}, nil
	}

	placeholders := make([]string, len(exerciseIDs))
	args := make([]interface{}, 0, len(exerciseIDs)+1)
	args = append(args, learnerID)
	for i, id := range exerciseIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT exercise_id, status, score, attempts, time_spent_sec
		FROM completions
		WHERE learner_id = $1 AND exercise_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	var completions []progress.Completion
	for rows.Next() {
		var c progress.Completion
		var status string

		if err := rows.Scan(&c.ExerciseID, &status, &c.Score, &c.Attempts, &c.TimeSpentSec); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}

		c.Status = progress.CompletionStatus(status)
		completions = append(completions, c)
	}

	return completions, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements progress.SnapshotRepository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// GetSnapshot returns the stored snapshot for a (learner, session) pair,
// or (nil, nil) when no snapshot exists yet.
func (r *SnapshotRepository) GetSnapshot(ctx context.Context, learnerID, sessionID string) (*progress.Snapshot, error) {
	query := `
		SELECT learner_id, session_id, status, xp_earned, percentage, updated_at
		FROM session_snapshots
		WHERE learner_id = $1 AND session_id = $2
	`

	var s progress.Snapshot
	var status string

	err := r.conn.QueryRow(ctx, query, learnerID, sessionID).Scan(
		&s.LearnerID, &s.SessionID, &status, &s.XPEarned, &s.Percentage, &s.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	s.Status = progress.SessionStatus(status)
	return &s, nil
}

// GetSnapshots returns stored snapshots for the given sessions, keyed by
// session ID. Sessions without a snapshot are absent from the map.
func (r *SnapshotRepository) GetSnapshots(ctx context.Context, learnerID string, sessionIDs []string) (map[string]progress.Snapshot, error) {
	if len(sessionIDs) == 0 {
		return map[string]progress.Snapshot{}, nil
	}

	placeholders := make([]string, len(sessionIDs))
	args := make([]interface{}, 0, len(sessionIDs)+1)
	args = append(args, learnerID)
	for i, id := range sessionIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT learner_id, session_id, status, xp_earned, percentage, updated_at
		FROM session_snapshots
		WHERE learner_id = $1 AND session_id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make(map[string]progress.Snapshot)
	for rows.Next() {
		var s progress.Snapshot
		var status string

		if err := rows.Scan(&s.LearnerID, &s.SessionID, &status, &s.XPEarned, &s.Percentage, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		s.Status = progress.SessionStatus(status)
		snapshots[s.SessionID] = s
	}

	return snapshots, rows.Err()
}

// UpsertSnapshot merges a recomputed snapshot into the stored one. The merge
// happens server-side with GREATEST so concurrent writers cannot lower a
// learner's recorded progress regardless of interleaving.
func (r *SnapshotRepository) UpsertSnapshot(ctx context.Context, s progress.Snapshot) error {
	query := `
		INSERT INTO session_snapshots (learner_id, session_id, status, xp_earned, percentage, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (learner_id, session_id) DO UPDATE SET
			xp_earned = GREATEST(session_snapshots.xp_earned, EXCLUDED.xp_earned),
			percentage = GREATEST(session_snapshots.percentage, EXCLUDED.percentage),
			status = CASE
				WHEN CASE EXCLUDED.status WHEN 'completed' THEN 2 WHEN 'in_progress' THEN 1 ELSE 0 END >
					 CASE session_snapshots.status WHEN 'completed' THEN 2 WHEN 'in_progress' THEN 1 ELSE 0 END
				THEN EXCLUDED.status
				ELSE session_snapshots.status
			END,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		s.LearnerID,
		s.SessionID,
		string(s.Status),
		s.XPEarned,
		s.Percentage,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}
