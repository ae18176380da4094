// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements achievement.Repository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

const definitionColumns = `
	id, code, name, description, emoji, criteria_type, criteria_value,
	xp_reward, rarity, is_annual, annual_year, created_at
`

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// FindDefinition returns a definition by ID.
func (r *AchievementRepository) FindDefinition(ctx context.Context, id string) (*achievement.Definition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM achievement_definitions
		WHERE id = $1
	`

	row := r.conn.QueryRow(ctx, query, id)
	return scanDefinition(row)
}

// ListDefinitions returns the whole achievement catalog.
func (r *AchievementRepository) ListDefinitions(ctx context.Context) ([]*achievement.Definition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM achievement_definitions
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievement definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ListAnnualDefinitions returns the annual achievements of a season.
func (r *AchievementRepository) ListAnnualDefinitions(ctx context.Context, seasonYear int) ([]*achievement.Definition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM achievement_definitions
		WHERE is_annual AND annual_year = $1
		ORDER BY criteria_value
	`

	rows, err := r.conn.Query(ctx, query, seasonYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list annual definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// SaveDefinition creates or updates a catalog entry, keyed by code.
func (r *AchievementRepository) SaveDefinition(ctx context.Context, def *achievement.Definition) error {
	query := `
		INSERT INTO achievement_definitions (
			id, code, name, description, emoji, criteria_type, criteria_value,
			xp_reward, rarity, is_annual, annual_year, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			emoji = EXCLUDED.emoji,
			criteria_type = EXCLUDED.criteria_type,
			criteria_value = EXCLUDED.criteria_value,
			xp_reward = EXCLUDED.xp_reward,
			rarity = EXCLUDED.rarity,
			is_annual = EXCLUDED.is_annual,
			annual_year = EXCLUDED.annual_year
	`

	var annualYear *int
	if def.IsAnnual {
		year := def.AnnualYear
		annualYear = &year
	}

	_, err := r.conn.Exec(ctx, query,
		def.ID,
		def.Code,
		def.Name,
		def.Description,
		def.Emoji,
		string(def.CriteriaType),
		def.CriteriaValue,
		int(def.XPReward),
		string(def.Rarity),
		def.IsAnnual,
		annualYear,
		def.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save achievement definition: %w", err)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Unlocks
// ─────────────────────────────────────────────────────────────────────────────

// ListUnlocked returns a student's unlocks.
func (r *AchievementRepository) ListUnlocked(ctx context.Context, studentID string) ([]*achievement.Unlock, error) {
	query := `
		SELECT id, student_id, dojo_id, achievement_id, unlocked_at
		FROM student_achievements
		WHERE student_id = $1
		ORDER BY unlocked_at
	`

	rows, err := r.conn.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlocks: %w", err)
	}
	defer rows.Close()

	unlocks := make([]*achievement.Unlock, 0)
	for rows.Next() {
		var u achievement.Unlock
		if err := rows.Scan(&u.ID, &u.StudentID, &u.DojoID, &u.AchievementID, &u.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unlock: %w", err)
		}
		unlocks = append(unlocks, &u)
	}

	return unlocks, rows.Err()
}

// CountUnlockedByStudents returns unlock counts keyed by student ID.
func (r *AchievementRepository) CountUnlockedByStudents(ctx context.Context, dojoID string) (map[string]int, error) {
	query := `
		SELECT student_id, COUNT(*)
		FROM student_achievements
		WHERE dojo_id = $1
		GROUP BY student_id
	`

	rows, err := r.conn.Query(ctx, query, dojoID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unlocks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			studentID string
			count     int
		)
		if err := rows.Scan(&studentID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unlock count: %w", err)
		}
		counts[studentID] = count
	}

	return counts, rows.Err()
}

// Unlock idempotently records an unlock. A conflict on the
// (student, achievement) pair means the achievement was already unlocked,
// which is reported as (false, nil) rather than an error.
func (r *AchievementRepository) Unlock(ctx context.Context, unlock *achievement.Unlock) (bool, error) {
	query := `
		INSERT INTO student_achievements (id, student_id, dojo_id, achievement_id, unlocked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, achievement_id) DO NOTHING
	`

	result, err := r.conn.Exec(ctx, query,
		unlock.ID,
		unlock.StudentID,
		unlock.DojoID,
		unlock.AchievementID,
		unlock.UnlockedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record unlock: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func scanDefinition(row pgx.Row) (*achievement.Definition, error) {
	var (
		def          achievement.Definition
		criteriaType string
		xpReward     int
		rarity       string
		annualYear   *int
		createdAt    time.Time
	)

	err := row.Scan(
		&def.ID,
		&def.Code,
		&def.Name,
		&def.Description,
		&def.Emoji,
		&criteriaType,
		&def.CriteriaValue,
		&xpReward,
		&rarity,
		&def.IsAnnual,
		&annualYear,
		&createdAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, achievement.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to scan achievement definition: %w", err)
	}

	def.CriteriaType = achievement.CriteriaType(criteriaType)
	def.XPReward = gamification.XP(xpReward)
	def.Rarity = achievement.Rarity(rarity)
	if annualYear != nil {
		def.AnnualYear = *annualYear
	}
	def.CreatedAt = createdAt

	return &def, nil
}

func collectDefinitions(rows pgx.Rows) ([]*achievement.Definition, error) {
	defs := make([]*achievement.Definition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
