// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RosterRepository implements leaderboard.Roster for PostgreSQL.
// Students and dojos are managed by the enrollment system; this repository
// only reads what the leaderboard and the annual close-out need.
type RosterRepository struct {
	conn *Connection
}

// NewRosterRepository creates a new RosterRepository.
func NewRosterRepository(conn *Connection) *RosterRepository {
	return &RosterRepository{conn: conn}
}

// ListApproved returns the approved students of a dojo.
func (r *RosterRepository) ListApproved(ctx context.Context, dojoID string) ([]leaderboard.RosterStudent, error) {
	query := `
		SELECT id, display_name
		FROM students
		WHERE dojo_id = $1 AND status = 'approved'
		ORDER BY display_name
	`

	rows, err := r.conn.Query(ctx, query, dojoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved students: %w", err)
	}
	defer rows.Close()

	students := make([]leaderboard.RosterStudent, 0)
	for rows.Next() {
		var s leaderboard.RosterStudent
		if err := rows.Scan(&s.StudentID, &s.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan roster student: %w", err)
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

// ListDojos returns the IDs of all active dojos.
func (r *RosterRepository) ListDojos(ctx context.Context) ([]string, error) {
	query := `
		SELECT id
		FROM dojos
		WHERE is_active
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dojos: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dojo id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
