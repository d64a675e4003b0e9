// Package postgres implements the PostgreSQL persistence layer for Questhall
// Progress Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection) *LessonRepository {
	return &LessonRepository{conn: conn}
}

// GetInfo returns lesson metadata, or (nil, nil) when the lesson is unknown.
func (r *LessonRepository) GetInfo(ctx context.Context, id string) (*lesson.Info, error) {
	query := `
		SELECT id, course_id, session_date, xp_bonus_multiplier, topic, created_at
		FROM lesson_infos
		WHERE id = $1
	`

	var info lesson.Info
	err := r.conn.QueryRow(ctx, query, id).Scan(
		&info.ID, &info.CourseID, &info.SessionDate, &info.XPBonusMultiplier, &info.Topic, &info.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson info: %w", err)
	}

	return &info, nil
}

// CreateInfo stores lesson metadata.
func (r *LessonRepository) CreateInfo(ctx context.Context, info lesson.Info) error {
	query := `
		INSERT INTO lesson_infos (id, course_id, session_date, xp_bonus_multiplier, topic, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		info.ID, info.CourseID, info.SessionDate, info.XPBonusMultiplier, info.Topic, info.CreatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.ErrLessonAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create lesson info: %w", err)
	}

	return nil
}

// ListInfosByCourse returns lesson metadata for a course within a period.
// A zero "from" means from the beginning.
func (r *LessonRepository) ListInfosByCourse(ctx context.Context, courseID string, from, to time.Time) ([]lesson.Info, error) {
	query := `
		SELECT id, course_id, session_date, xp_bonus_multiplier, topic, created_at
		FROM lesson_infos
		WHERE course_id = $1 AND session_date >= $2 AND session_date <= $3
		ORDER BY session_date ASC
	`

	rows, err := r.conn.Query(ctx, query, courseID, normalizeFrom(from), to)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson infos: %w", err)
	}
	defer rows.Close()

	var infos []lesson.Info
	for rows.Next() {
		var info lesson.Info
		err := rows.Scan(&info.ID, &info.CourseID, &info.SessionDate, &info.XPBonusMultiplier, &info.Topic, &info.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson info: %w", err)
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// GetRecords returns all records of a single lesson.
func (r *LessonRepository) GetRecords(ctx context.Context, id string) ([]lesson.Record, error) {
	query := `
		SELECT lesson_info_id, learner_id, attendance, performance, homework, star_flag, notes
		FROM lesson_records
		WHERE lesson_info_id = $1
		ORDER BY learner_id ASC
	`

	rows, err := r.conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// ListRecordsByCourse returns all lesson records for a course within a period.
func (r *LessonRepository) ListRecordsByCourse(ctx context.Context, courseID string, from, to time.Time) ([]lesson.Record, error) {
	query := `
		SELECT lr.lesson_info_id, lr.learner_id, lr.attendance, lr.performance, lr.homework, lr.star_flag, lr.notes
		FROM lesson_records lr
		JOIN lesson_infos li ON li.id = lr.lesson_info_id
		WHERE li.course_id = $1 AND li.session_date >= $2 AND li.session_date <= $3
		ORDER BY li.session_date ASC, lr.learner_id ASC
	`

	rows, err := r.conn.Query(ctx, query, courseID, normalizeFrom(from), to)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// UpsertRecords stores the teacher's records for a lesson. One row per
// (lesson, learner) pair; the latest write wins. All rows go in a single
// transaction so a partially saved lesson is never visible.
func (r *LessonRepository) UpsertRecords(ctx context.Context, id string, records []lesson.Record) error {
	query := `
		INSERT INTO lesson_records (lesson_info_id, learner_id, attendance, performance, homework, star_flag, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (lesson_info_id, learner_id) DO UPDATE SET
			attendance = EXCLUDED.attendance,
			performance = EXCLUDED.performance,
			homework = EXCLUDED.homework,
			star_flag = EXCLUDED.star_flag,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, rec := range records {
			_, err := tx.Exec(ctx, query,
				id,
				rec.LearnerID,
				string(rec.Attendance),
				string(rec.Performance),
				string(rec.Homework),
				rec.StarFlag,
				rec.Notes,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert record for learner %s: %w", rec.LearnerID, err)
			}
		}
		return nil
	})
}

func (r *LessonRepository) scanRecords(rows pgx.Rows) ([]lesson.Record, error) {
	var records []lesson.Record
	for rows.Next() {
		var rec lesson.Record
		var attendance, performance, homework string

		err := rows.Scan(&rec.LessonInfoID, &rec.LearnerID, &attendance, &performance, &homework, &rec.StarFlag, &rec.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson record: %w", err)
		}

		rec.Attendance = lesson.AttendanceStatus(attendance)
		rec.Performance = lesson.Rating(performance)
		rec.Homework = lesson.Rating(homework)
		records = append(records, rec)
	}

	return records, rows.Err()
}

// normalizeFrom maps a zero "from" to the epoch so the range check works.
func normalizeFrom(from time.Time) time.Time {
	if from.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return from
}
