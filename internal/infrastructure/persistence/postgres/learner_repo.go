// Package postgres implements the PostgreSQL persistence layer for Questhall
// Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/questhall/questhall-progress-hub/internal/domain/learner"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

// Create creates a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *learner.Learner) error {
	query := `
		INSERT INTO learners (
			id, display_name, xp, streak_count, last_completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var lastCompleted *time.Time
	if !l.LastCompletedAt.IsZero() {
		lastCompleted = &l.LastCompletedAt
	}

	_, err := r.conn.Exec(ctx, query,
		l.ID,
		l.DisplayName,
		int(l.CurrentXP),
		l.StreakCount,
		lastCompleted,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns a learner by internal ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id string) (*learner.Learner, error) {
	query := `
		SELECT id, display_name, xp, streak_count, last_completed_at, created_at, updated_at
		FROM learners
		WHERE id = $1
	`

	l, err := r.scanLearner(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetByIDs returns learners by a list of IDs.
func (r *LearnerRepository) GetByIDs(ctx context.Context, ids []string) ([]*learner.Learner, error) {
	if len(ids) == 0 {
		return []*learner.Learner{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, display_name, xp, streak_count, last_completed_at, created_at, updated_at
		FROM learners
		WHERE id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learners by ids: %w", err)
	}
	defer rows.Close()

	var learners []*learner.Learner
	for rows.Next() {
		var l learner.Learner
		var xp int
		var lastCompleted *time.Time

		err := rows.Scan(&l.ID, &l.DisplayName, &xp, &l.StreakCount, &lastCompleted, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan learner: %w", err)
		}

		l.CurrentXP = learner.XP(xp)
		if lastCompleted != nil {
			l.LastCompletedAt = *lastCompleted
		}

		learners = append(learners, &l)
	}

	return learners, rows.Err()
}

// Update updates learner profile fields. The xp column is deliberately
// excluded: the counter is written only through IncrementXP.
func (r *LearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	query := `
		UPDATE learners SET
			display_name = $1,
			streak_count = $2,
			last_completed_at = $3,
			updated_at = $4
		WHERE id = $5
	`

	var lastCompleted *time.Time
	if !l.LastCompletedAt.IsZero() {
		lastCompleted = &l.LastCompletedAt
	}

	result, err := r.conn.Exec(ctx, query,
		l.DisplayName,
		l.StreakCount,
		lastCompleted,
		time.Now().UTC(),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// scanLearner scans a single learner from a row.
func (r *LearnerRepository) scanLearner(row interface{ Scan(...any) error }) (*learner.Learner, error) {
	var l learner.Learner
	var xp int
	var lastCompleted *time.Time

	err := row.Scan(&l.ID, &l.DisplayName, &xp, &l.StreakCount, &lastCompleted, &l.CreatedAt, &l.UpdatedAt)
	if IsNoRows(err) {
		return nil, shared.ErrLearnerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan learner: %w", err)
	}

	l.CurrentXP = learner.XP(xp)
	if lastCompleted != nil {
		l.LastCompletedAt = *lastCompleted
	}

	return &l, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// XP COUNTER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// batchConcurrency bounds the number of parallel increments in a batch.
const batchConcurrency = 8

// XPCounter implements learner.XPCounter on top of an atomic UPDATE.
// Two independent subsystems (session rewards and lesson credits) write the
// same counter, so the increment happens entirely inside the database and the
// new total is read back from the same statement.
type XPCounter struct {
	conn        *Connection
	concurrency int
}

// NewXPCounter creates a new XPCounter.
func NewXPCounter(conn *Connection) *XPCounter {
	return &XPCounter{conn: conn, concurrency: batchConcurrency}
}

// WithBatchConcurrency overrides the parallel increment limit for batches.
// Values below 1 keep the current setting.
func (c *XPCounter) WithBatchConcurrency(n int) *XPCounter {
	if n >= 1 {
		c.concurrency = n
	}
	return c
}

// IncrementXP atomically adds delta to the learner's XP counter and returns
// the new total.
func (c *XPCounter) IncrementXP(ctx context.Context, learnerID string, delta learner.XP) (learner.XP, error) {
	if delta <= 0 {
		return 0, shared.ErrInvalidXPDelta
	}

	query := `
		UPDATE learners
		SET xp = xp + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING xp
	`

	var newTotal int
	err := c.conn.QueryRow(ctx, query, int(delta), learnerID).Scan(&newTotal)
	if IsNoRows(err) {
		return 0, shared.ErrLearnerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment xp: %w", err)
	}

	return learner.XP(newTotal), nil
}

// BatchIncrementXP applies independent atomic increments for a batch of
// learners. Results are returned strictly in deltas order; a failed row does
// not block or roll back the others.
func (c *XPCounter) BatchIncrementXP(ctx context.Context, deltas []learner.XPDelta) []learner.XPResult {
	results := make([]learner.XPResult, len(deltas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, d := range deltas {
		i, d := i, d
		g.Go(func() error {
			total, err := c.IncrementXP(gctx, d.LearnerID, d.Delta)
			results[i] = learner.XPResult{
				LearnerID: d.LearnerID,
				NewTotal:  total,
				Err:       err,
			}
			// Errors are reported per row, never propagated to the group.
			return nil
		})
	}

	_ = g.Wait()
	return results
}
