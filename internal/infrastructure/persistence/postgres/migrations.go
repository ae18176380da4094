// Package postgres implements the PostgreSQL persistence layer for Dojo
// Gamification Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE DOJOS AND STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create dojos and students tables
-- Version: 001

CREATE TABLE IF NOT EXISTS dojos (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name VARCHAR(100) NOT NULL,
    slug VARCHAR(50) NOT NULL UNIQUE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_dojos_slug ON dojos(slug);
CREATE INDEX IF NOT EXISTS idx_dojos_active ON dojos(id) WHERE is_active;

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    dojo_id UUID NOT NULL REFERENCES dojos(id) ON DELETE CASCADE,
    display_name VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_student_status CHECK (status IN ('pending', 'approved', 'suspended', 'left'))
);

CREATE INDEX IF NOT EXISTS idx_students_dojo_id ON students(dojo_id);
CREATE INDEX IF NOT EXISTS idx_students_dojo_status ON students(dojo_id, status);

-- Updated_at trigger function for automatic timestamp updates
CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
    NEW.updated_at = NOW();
    RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_students_updated_at ON students;
CREATE TRIGGER update_students_updated_at
    BEFORE UPDATE ON students
    FOR EACH ROW
    EXECUTE FUNCTION update_updated_at_column();
`

const migration001Down = `
DROP TRIGGER IF EXISTS update_students_updated_at ON students;
DROP FUNCTION IF EXISTS update_updated_at_column();
DROP TABLE IF EXISTS students;
DROP TABLE IF EXISTS dojos;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE STUDENT XP
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create student_xp ledger and xp_history audit trail
-- Version: 002

-- One row per student per dojo. The row is the single source of truth for
-- the student's seasonal score, level and streak.
CREATE TABLE IF NOT EXISTS student_xp (
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    dojo_id UUID NOT NULL REFERENCES dojos(id) ON DELETE CASCADE,
    total_xp INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    first_activity_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (student_id, dojo_id),

    CONSTRAINT non_negative_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT non_negative_streak CHECK (current_streak >= 0),
    CONSTRAINT longest_covers_current CHECK (longest_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_student_xp_dojo ON student_xp(dojo_id);
CREATE INDEX IF NOT EXISTS idx_student_xp_dojo_total ON student_xp(dojo_id, total_xp DESC);

-- Append-only audit trail of every grant.
CREATE TABLE IF NOT EXISTS xp_history (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    dojo_id UUID NOT NULL REFERENCES dojos(id) ON DELETE CASCADE,
    base_amount INTEGER NOT NULL,
    granted INTEGER NOT NULL,
    multiplier DECIMAL(4,2) NOT NULL DEFAULT 1.00,
    reason VARCHAR(100) NOT NULL,
    source_id VARCHAR(100),
    activity_date DATE NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT non_negative_base CHECK (base_amount >= 0),
    CONSTRAINT non_negative_granted CHECK (granted >= 0)
);

CREATE INDEX IF NOT EXISTS idx_xp_history_student ON xp_history(student_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_xp_history_dojo_date ON xp_history(dojo_id, activity_date DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS xp_history;
DROP TABLE IF EXISTS student_xp;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create achievement catalog and unlocks
-- Version: 003

CREATE TABLE IF NOT EXISTS achievement_definitions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    code VARCHAR(50) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    emoji VARCHAR(10) NOT NULL DEFAULT '',
    criteria_type VARCHAR(30) NOT NULL,
    criteria_value INTEGER NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    rarity VARCHAR(20) NOT NULL DEFAULT 'common',
    is_annual BOOLEAN NOT NULL DEFAULT FALSE,
    annual_year INTEGER,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_criteria_type CHECK (criteria_type IN ('tasks_completed', 'streak_days', 'total_xp', 'annual_rank')),
    CONSTRAINT valid_rarity CHECK (rarity IN ('common', 'rare', 'epic', 'legendary')),
    CONSTRAINT positive_criteria CHECK (criteria_value > 0),
    CONSTRAINT non_negative_reward CHECK (xp_reward >= 0),
    CONSTRAINT annual_has_year CHECK (NOT is_annual OR annual_year IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_achievement_defs_type ON achievement_definitions(criteria_type);
CREATE INDEX IF NOT EXISTS idx_achievement_defs_annual ON achievement_definitions(annual_year) WHERE is_annual;

-- The UNIQUE constraint is the idempotency guarantee: re-unlocking the same
-- achievement is a conflict, and callers treat the conflict as a no-op.
CREATE TABLE IF NOT EXISTS student_achievements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    dojo_id UUID NOT NULL REFERENCES dojos(id) ON DELETE CASCADE,
    achievement_id UUID NOT NULL REFERENCES achievement_definitions(id) ON DELETE CASCADE,
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (student_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_student_achievements_student ON student_achievements(student_id);
CREATE INDEX IF NOT EXISTS idx_student_achievements_dojo ON student_achievements(dojo_id);
`

const migration003Down = `
DROP TABLE IF EXISTS student_achievements;
DROP TABLE IF EXISTS achievement_definitions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE LEADERBOARD HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create annual leaderboard archive
-- Version: 004

-- One row per student per closed season. The UNIQUE constraint makes the
-- annual close idempotent: a season can only be archived once.
CREATE TABLE IF NOT EXISTS leaderboard_history (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    dojo_id UUID NOT NULL REFERENCES dojos(id) ON DELETE CASCADE,
    year INTEGER NOT NULL,
    final_rank INTEGER NOT NULL,
    total_xp INTEGER NOT NULL,
    level INTEGER NOT NULL,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    achievement_count INTEGER NOT NULL DEFAULT 0,
    archived_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    UNIQUE (student_id, dojo_id, year),

    CONSTRAINT valid_final_rank CHECK (final_rank >= 1),
    CONSTRAINT valid_season_year CHECK (year >= 2000 AND year <= 2200)
);

CREATE INDEX IF NOT EXISTS idx_leaderboard_history_dojo_year ON leaderboard_history(dojo_id, year, final_rank);
CREATE INDEX IF NOT EXISTS idx_leaderboard_history_student ON leaderboard_history(student_id, year DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_history;
`
