// Package postgres implements the PostgreSQL persistence layer for Questhall
// Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/domain/reward"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLAIM REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ClaimRepository implements reward.ClaimRepository for PostgreSQL.
// The composite primary key on (learner_id, session_id) is the race arbiter:
// of any number of concurrent claim attempts exactly one insert succeeds.
type ClaimRepository struct {
	conn *Connection
}

// NewClaimRepository creates a new ClaimRepository.
func NewClaimRepository(conn *Connection) *ClaimRepository {
	return &ClaimRepository{conn: conn}
}

// InsertIfAbsent inserts a claim row unless one already exists for the pair.
// A conflict is a normal outcome, not an error: the caller decides how to
// report the losing side of the race.
func (r *ClaimRepository) InsertIfAbsent(ctx context.Context, c reward.Claim) (reward.InsertOutcome, error) {
	query := `
		INSERT INTO reward_claims (learner_id, session_id, xp_awarded, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (learner_id, session_id) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query, c.LearnerID, c.SessionID, c.XPAwarded, c.ClaimedAt)
	if err != nil {
		// ON CONFLICT swallows the duplicate, but keep the check for
		// drivers surfacing the violation anyway.
		if IsUniqueViolation(err) {
			return reward.InsertConflict, nil
		}
		return reward.InsertConflict, fmt.Errorf("failed to insert claim: %w", err)
	}

	if result.RowsAffected() == 0 {
		return reward.InsertConflict, nil
	}

	return reward.InsertCreated, nil
}

// Get returns the claim for a (learner, session) pair, or (nil, nil) when
// no claim exists.
func (r *ClaimRepository) Get(ctx context.Context, learnerID, sessionID string) (*reward.Claim, error) {
	query := `
		SELECT learner_id, session_id, xp_awarded, claimed_at, credited_at
		FROM reward_claims
		WHERE learner_id = $1 AND session_id = $2
	`

	var c reward.Claim
	err := r.conn.QueryRow(ctx, query, learnerID, sessionID).Scan(
		&c.LearnerID, &c.SessionID, &c.XPAwarded, &c.ClaimedAt, &c.CreditedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	return &c, nil
}

// ListByLearner returns all claims of a learner, newest first.
func (r *ClaimRepository) ListByLearner(ctx context.Context, learnerID string) ([]reward.Claim, error) {
	query := `
		SELECT learner_id, session_id, xp_awarded, claimed_at, credited_at
		FROM reward_claims
		WHERE learner_id = $1
		ORDER BY claimed_at DESC
	`

	rows, err := r.conn.Query(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []reward.Claim
	for rows.Next() {
		var c reward.Claim
		if err := rows.Scan(&c.LearnerID, &c.SessionID, &c.XPAwarded, &c.ClaimedAt, &c.CreditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}

	return claims, rows.Err()
}

// MarkCredited records that the XP credit for a claim has been applied.
func (r *ClaimRepository) MarkCredited(ctx context.Context, learnerID, sessionID string, at time.Time) error {
	query := `
		UPDATE reward_claims
		SET credited_at = $1
		WHERE learner_id = $2 AND session_id = $3 AND credited_at IS NULL
	`

	result, err := r.conn.Exec(ctx, query, at, learnerID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to mark claim credited: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrClaimNotFound
	}

	return nil
}

// ListUncredited returns claims older than the given cutoff that have no
// credit confirmation. These rows feed the reconciliation report.
func (r *ClaimRepository) ListUncredited(ctx context.Context, olderThan time.Time) ([]reward.Claim, error) {
	query := `
		SELECT learner_id, session_id, xp_awarded, claimed_at, credited_at
		FROM reward_claims
		WHERE credited_at IS NULL AND claimed_at < $1
		ORDER BY claimed_at ASC
	`

	rows, err := r.conn.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list uncredited claims: %w", err)
	}
	defer rows.Close()

	var claims []reward.Claim
	for rows.Next() {
		var c reward.Claim
		if err := rows.Scan(&c.LearnerID, &c.SessionID, &c.XPAwarded, &c.ClaimedAt, &c.CreditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, c)
	}

	return claims, rows.Err()
}
