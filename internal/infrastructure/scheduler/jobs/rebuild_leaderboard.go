// Package jobs contains the background jobs of Dojo Gamification Hub.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/application/query"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Periodically rebuilds the cached leaderboard of every active dojo so reads
// stay warm even between grants.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob rebuilds leaderboard caches for all active dojos.
type RebuildLeaderboardJob struct {
	roster       leaderboard.Roster
	leaderboards *query.GetLeaderboardHandler
	logger       *slog.Logger
	config       RebuildLeaderboardConfig

	lastStats atomic.Value // RebuildLeaderboardStats
}

// RebuildLeaderboardConfig contains configuration for the job.
type RebuildLeaderboardConfig struct {
	// Timeout is the maximum duration for a full run across all dojos.
	Timeout time.Duration

	// PerDojoTimeout bounds the rebuild of a single dojo.
	PerDojoTimeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		Timeout:        5 * time.Minute,
		PerDojoTimeout: 30 * time.Second,
	}
}

// RebuildLeaderboardStats contains statistics from the last run.
type RebuildLeaderboardStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	DojosTotal   int
	DojosRebuilt int
	DojosFailed  int
	Entries      int
}

// NewRebuildLeaderboardJob creates the job.
func NewRebuildLeaderboardJob(
	roster leaderboard.Roster,
	leaderboards *query.GetLeaderboardHandler,
	logger *slog.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRebuildLeaderboardConfig().Timeout
	}
	if config.PerDojoTimeout == 0 {
		config.PerDojoTimeout = DefaultRebuildLeaderboardConfig().PerDojoTimeout
	}

	return &RebuildLeaderboardJob{
		roster:       roster,
		leaderboards: leaderboards,
		logger:       logger.With("job", "rebuild_leaderboard"),
		config:       config,
	}
}

// Name implements scheduler.Job.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description implements scheduler.Job.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds the cached leaderboard of every active dojo"
}

// Run implements scheduler.Job.
// A failed dojo never blocks the others; failures are reported in aggregate.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := RebuildLeaderboardStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastStats.Store(stats)
	}()

	dojos, err := j.roster.ListDojos(ctx)
	if err != nil {
		return fmt.Errorf("rebuild_leaderboard: failed to list dojos: %w", err)
	}
	stats.DojosTotal = len(dojos)

	for _, dojoID := range dojos {
		if err := ctx.Err(); err != nil {
			return err
		}

		ranking, err := j.rebuildOne(ctx, dojoID)
		if err != nil {
			stats.DojosFailed++
			j.logger.Error("dojo rebuild failed", "dojo_id", dojoID, "error", err)
			continue
		}

		stats.DojosRebuilt++
		stats.Entries += ranking.Count()
	}

	j.logger.Info("leaderboard rebuild completed",
		"dojos_total", stats.DojosTotal,
		"dojos_rebuilt", stats.DojosRebuilt,
		"dojos_failed", stats.DojosFailed,
		"entries", stats.Entries,
	)

	if stats.DojosFailed > 0 {
		return fmt.Errorf("rebuild_leaderboard: %d of %d dojos failed", stats.DojosFailed, stats.DojosTotal)
	}

	return nil
}

// rebuildOne rebuilds a single dojo under its own timeout.
func (j *RebuildLeaderboardJob) rebuildOne(ctx context.Context, dojoID string) (*leaderboard.Ranking, error) {
	ctx, cancel := context.WithTimeout(ctx, j.config.PerDojoTimeout)
	defer cancel()

	return j.leaderboards.Rebuild(ctx, dojoID)
}

// LastStats returns statistics from the last run.
func (j *RebuildLeaderboardJob) LastStats() (RebuildLeaderboardStats, bool) {
	stats, ok := j.lastStats.Load().(RebuildLeaderboardStats)
	return stats, ok
}
