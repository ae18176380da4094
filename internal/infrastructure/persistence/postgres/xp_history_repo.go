// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// XPHistoryRepository implements gamification.HistoryRepository for PostgreSQL.
// The xp_history table is append-only: grants are never edited or removed.
type XPHistoryRepository struct {
	conn *Connection
}

// NewXPHistoryRepository creates a new XPHistoryRepository.
func NewXPHistoryRepository(conn *Connection) *XPHistoryRepository {
	return &XPHistoryRepository{conn: conn}
}

// Record appends a grant entry to the audit trail.
func (r *XPHistoryRepository) Record(ctx context.Context, entry gamification.XPHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO xp_history (
			id, student_id, dojo_id, base_amount, granted, multiplier,
			reason, source_id, activity_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.conn.Exec(ctx, query,
		entry.ID,
		entry.StudentID,
		entry.DojoID,
		int(entry.BaseAmount),
		int(entry.Granted),
		entry.Multiplier,
		entry.Reason,
		nullableString(entry.SourceID),
		entry.ActivityDate.Time(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record xp history: %w", err)
	}

	return nil
}

// ListByStudent returns a student's grant entries, newest first.
func (r *XPHistoryRepository) ListByStudent(
	ctx context.Context,
	studentID, dojoID string,
	p shared.Pagination,
) ([]gamification.XPHistoryEntry, error) {
	query := `
		SELECT id, student_id, dojo_id, base_amount, granted, multiplier,
			   reason, source_id, activity_date, created_at
		FROM xp_history
		WHERE student_id = $1 AND dojo_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.conn.Query(ctx, query, studentID, dojoID, p.Limit(), p.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list xp history: %w", err)
	}
	defer rows.Close()

	entries := make([]gamification.XPHistoryEntry, 0)
	for rows.Next() {
		var (
			entry        gamification.XPHistoryEntry
			baseAmount   int
			granted      int
			sourceID     *string
			activityDate time.Time
		)

		err := rows.Scan(
			&entry.ID,
			&entry.StudentID,
			&entry.DojoID,
			&baseAmount,
			&granted,
			&entry.Multiplier,
			&entry.Reason,
			&sourceID,
			&activityDate,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan xp history: %w", err)
		}

		entry.BaseAmount = gamification.XP(baseAmount)
		entry.Granted = gamification.XP(granted)
		if sourceID != nil {
			entry.SourceID = *sourceID
		}
		entry.ActivityDate = timeutil.DateOf(activityDate)

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// nullableString converts an empty string to NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
