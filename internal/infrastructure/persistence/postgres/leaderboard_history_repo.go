// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardHistoryRepository implements leaderboard.HistoryRepository
// for PostgreSQL.
type LeaderboardHistoryRepository struct {
	conn *Connection
}

// NewLeaderboardHistoryRepository creates a new LeaderboardHistoryRepository.
func NewLeaderboardHistoryRepository(conn *Connection) *LeaderboardHistoryRepository {
	return &LeaderboardHistoryRepository{conn: conn}
}

const historyColumns = `
	id, student_id, dojo_id, year, final_rank, total_xp, level,
	longest_streak, achievement_count, archived_at
`

// HasSeason reports whether a dojo's season has already been archived.
// A single archived row for (dojo, year) means the whole close-out ran.
func (r *LeaderboardHistoryRepository) HasSeason(ctx context.Context, dojoID string, year int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM leaderboard_history
			WHERE dojo_id = $1 AND year = $2
		)
	`

	var exists bool
	if err := r.conn.QueryRow(ctx, query, dojoID, year).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check season archive: %w", err)
	}

	return exists, nil
}

// ArchiveSeason stores the final season entries in a single transaction.
func (r *LeaderboardHistoryRepository) ArchiveSeason(ctx context.Context, entries []*leaderboard.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO leaderboard_history (
			id, student_id, dojo_id, year, final_rank, total_xp, level,
			longest_streak, achievement_count, archived_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, entry := range entries {
			_, err := tx.Exec(ctx, query,
				entry.ID,
				entry.StudentID,
				entry.DojoID,
				entry.Year,
				int(entry.FinalRank),
				int(entry.TotalXP),
				int(entry.Level),
				entry.LongestStreak,
				entry.AchievementCount,
				entry.ArchivedAt,
			)
			if err != nil {
				if IsUniqueViolation(err) {
					return leaderboard.ErrSeasonAlreadyArchived
				}
				return fmt.Errorf("failed to archive season entry: %w", err)
			}
		}
		return nil
	})
}

// ListSeason returns a dojo's archived season ordered by final rank.
func (r *LeaderboardHistoryRepository) ListSeason(ctx context.Context, dojoID string, year int) ([]*leaderboard.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM leaderboard_history
		WHERE dojo_id = $1 AND year = $2
		ORDER BY final_rank
	`

	rows, err := r.conn.Query(ctx, query, dojoID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list season archive: %w", err)
	}
	defer rows.Close()

	return collectHistoryEntries(rows)
}

// ListStudentSeasons returns a student's results across all closed seasons.
func (r *LeaderboardHistoryRepository) ListStudentSeasons(ctx context.Context, studentID string) ([]*leaderboard.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM leaderboard_history
		WHERE student_id = $1
		ORDER BY year DESC
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list student seasons: %w", err)
	}
	defer rows.Close()

	return collectHistoryEntries(rows)
}

func collectHistoryEntries(rows pgx.Rows) ([]*leaderboard.HistoryEntry, error) {
	entries := make([]*leaderboard.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry     leaderboard.HistoryEntry
			finalRank int
			totalXP   int
			level     int
		)

		err := rows.Scan(
			&entry.ID,
			&entry.StudentID,
			&entry.DojoID,
			&entry.Year,
			&finalRank,
			&totalXP,
			&level,
			&entry.LongestStreak,
			&entry.AchievementCount,
			&entry.ArchivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan season archive: %w", err)
		}

		entry.FinalRank = leaderboard.Rank(finalRank)
		entry.TotalXP = gamification.XP(totalXP)
		entry.Level = gamification.Level(level)

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
