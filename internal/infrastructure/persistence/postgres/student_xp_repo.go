// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT XP REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentXPRepository implements gamification.Repository for PostgreSQL.
type StudentXPRepository struct {
	conn *Connection
}

// NewStudentXPRepository creates a new StudentXPRepository.
func NewStudentXPRepository(conn *Connection) *StudentXPRepository {
	return &StudentXPRepository{conn: conn}
}

const studentXPColumns = `
	student_id, dojo_id, total_xp, level, current_streak, longest_streak,
	last_activity_date, first_activity_at, created_at, updated_at
`

// Find returns the XP record for a student in a dojo.
func (r *StudentXPRepository) Find(ctx context.Context, studentID, dojoID string) (*gamification.StudentXP, error) {
	query := `
		SELECT ` + studentXPColumns + `
		FROM student_xp
		WHERE student_id = $1 AND dojo_id = $2
	`

	row := r.conn.QueryRow(ctx, query, studentID, dojoID)
	return scanStudentXP(row)
}

// ListByDojo returns all XP records of a dojo.
func (r *StudentXPRepository) ListByDojo(ctx context.Context, dojoID string) ([]*gamification.StudentXP, error) {
	query := `
		SELECT ` + studentXPColumns + `
		FROM student_xp
		WHERE dojo_id = $1
		ORDER BY total_xp DESC
	`

	rows, err := r.conn.Query(ctx, query, dojoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student xp: %w", err)
	}
	defer rows.Close()

	records := make([]*gamification.StudentXP, 0)
	for rows.Next() {
		record, err := scanStudentXP(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Grant atomically applies a grant to the student's XP record.
//
// The record is created lazily on first grant. Concurrent grants to the same
// student are serialized by a row lock: insert-if-missing, select the row
// FOR UPDATE, apply the grant in the domain entity, write the result back.
func (r *StudentXPRepository) Grant(
	ctx context.Context,
	rec gamification.GrantRecord,
	policy gamification.StreakPolicy,
) (*gamification.StudentXP, *gamification.GrantApplied, error) {
	var (
		record  *gamification.StudentXP
		applied *gamification.GrantApplied
	)

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		insertQuery := `
			INSERT INTO student_xp (student_id, dojo_id)
			VALUES ($1, $2)
			ON CONFLICT (student_id, dojo_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, insertQuery, rec.StudentID, rec.DojoID); err != nil {
			return fmt.Errorf("failed to ensure student xp row: %w", err)
		}

		selectQuery := `
			SELECT ` + studentXPColumns + `
			FROM student_xp
			WHERE student_id = $1 AND dojo_id = $2
			FOR UPDATE
		`
		row := tx.QueryRow(ctx, selectQuery, rec.StudentID, rec.DojoID)

		current, err := scanStudentXP(row)
		if err != nil {
			return err
		}

		result, err := current.ApplyGrant(rec.BaseAmount, rec.ActivityDate, policy)
		if err != nil {
			return err
		}

		updateQuery := `
			UPDATE student_xp SET
				total_xp = $1,
				level = $2,
				current_streak = $3,
				longest_streak = $4,
				last_activity_date = $5,
				first_activity_at = $6,
				updated_at = $7
			WHERE student_id = $8 AND dojo_id = $9
		`
		_, err = tx.Exec(ctx, updateQuery,
			int(current.TotalXP),
			int(current.Level),
			current.CurrentStreak,
			current.LongestStreak,
			dateToSQL(current.LastActivityDate),
			timeToSQL(current.FirstActivityAt),
			current.UpdatedAt,
			rec.StudentID,
			rec.DojoID,
		)
		if err != nil {
			return fmt.Errorf("failed to update student xp: %w", err)
		}

		record = current
		applied = result
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return record, applied, nil
}

// ResetSeason zeroes the records of the listed students in a dojo.
func (r *StudentXPRepository) ResetSeason(ctx context.Context, dojoID string, studentIDs []string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE student_xp SET
			total_xp = 0,
			level = 1,
			current_streak = 0,
			longest_streak = 0,
			last_activity_date = NULL,
			first_activity_at = NULL,
			updated_at = $1
		WHERE dojo_id = $2 AND student_id = ANY($3)
	`

	result, err := r.conn.Exec(ctx, query, time.Now().UTC(), dojoID, studentIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to reset season: %w", err)
	}

	return int(result.RowsAffected()), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanStudentXP(row pgx.Row) (*gamification.StudentXP, error) {
	var (
		record          gamification.StudentXP
		totalXP         int
		level           int
		lastActivity    *time.Time
		firstActivityAt *time.Time
	)

	err := row.Scan(
		&record.StudentID,
		&record.DojoID,
		&totalXP,
		&level,
		&record.CurrentStreak,
		&record.LongestStreak,
		&lastActivity,
		&firstActivityAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, gamification.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan student xp: %w", err)
	}

	record.TotalXP = gamification.XP(totalXP)
	record.Level = gamification.Level(level)
	if lastActivity != nil {
		date := timeutil.DateOf(*lastActivity)
		record.LastActivityDate = &date
	}
	if firstActivityAt != nil {
		record.FirstActivityAt = firstActivityAt.UTC()
	}

	return &record, nil
}

// dateToSQL converts an optional calendar date to a nullable DATE value.
func dateToSQL(d *timeutil.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time()
	return &t
}

// timeToSQL converts a zero time to NULL.
func timeToSQL(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
