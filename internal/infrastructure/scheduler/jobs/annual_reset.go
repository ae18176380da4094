package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-gamification-hub/internal/application/query"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ANNUAL RESET JOB
// Closes the season that just ended, one dojo at a time:
//
//  1. build the final standings
//  2. archive them (once; an archived dojo is never touched again)
//  3. award annual rank achievements
//  4. congratulate the podium
//  5. zero every XP record and drop the leaderboard cache
//
// Dojos are processed sequentially and independently: a failure in one dojo
// leaves the others untouched and is retried on the next run. Every step is
// idempotent, so a crash mid-dojo is safe to replay.
// ══════════════════════════════════════════════════════════════════════════════

// PodiumNotifier delivers season close-out notifications.
// Implemented by infrastructure/notify.
type PodiumNotifier interface {
	AnnualPodium(ctx context.Context, studentID, dojoID string, rank, year int)
	SeasonReset(ctx context.Context, studentID, dojoID string, newSeason int)
}

// AnnualResetJob performs the annual season close-out.
type AnnualResetJob struct {
	roster          leaderboard.Roster
	leaderboards    *query.GetLeaderboardHandler
	xpRepo          gamification.Repository
	achievementRepo achievement.Repository
	historyRepo     leaderboard.HistoryRepository
	cache           leaderboard.Cache
	notifier        PodiumNotifier
	eventPublisher  shared.EventPublisher
	logger          *slog.Logger
	config          AnnualResetConfig

	lastStats atomic.Value // AnnualResetStats
}

// AnnualResetConfig contains configuration for the job.
type AnnualResetConfig struct {
	// Year is the season to close. Zero means the year before the run time,
	// which is the right value for a scheduled January 1st run.
	Year int

	// Timeout is the maximum duration for a full run across all dojos.
	Timeout time.Duration

	// NotifySeasonReset controls whether every ranked student is told about
	// the new season, in addition to the podium notifications.
	NotifySeasonReset bool
}

// DefaultAnnualResetConfig returns sensible defaults.
func DefaultAnnualResetConfig() AnnualResetConfig {
	return AnnualResetConfig{
		Timeout:           30 * time.Minute,
		NotifySeasonReset: true,
	}
}

// AnnualResetStats contains statistics from the last run.
type AnnualResetStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Year             int
	DojosTotal       int
	DojosClosed      int
	DojosSkipped     int
	DojosFailed      int
	StudentsArchived int
	StudentsReset    int
	Errors           []string
}

// NewAnnualResetJob creates the job.
func NewAnnualResetJob(
	roster leaderboard.Roster,
	leaderboards *query.GetLeaderboardHandler,
	xpRepo gamification.Repository,
	achievementRepo achievement.Repository,
	historyRepo leaderboard.HistoryRepository,
	cache leaderboard.Cache,
	notifier PodiumNotifier,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config AnnualResetConfig,
) *AnnualResetJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultAnnualResetConfig().Timeout
	}

	return &AnnualResetJob{
		roster:          roster,
		leaderboards:    leaderboards,
		xpRepo:          xpRepo,
		achievementRepo: achievementRepo,
		historyRepo:     historyRepo,
		cache:           cache,
		notifier:        notifier,
		eventPublisher:  eventPublisher,
		logger:          logger.With("job", "annual_reset"),
		config:          config,
	}
}

// Name implements scheduler.Job.
func (j *AnnualResetJob) Name() string {
	return "annual_reset"
}

// Description implements scheduler.Job.
func (j *AnnualResetJob) Description() string {
	return "Archives the finished season, awards annual achievements and resets all XP records"
}

// Run implements scheduler.Job.
func (j *AnnualResetJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	year := j.config.Year
	if year == 0 {
		year = timeutil.PreviousYear(time.Now())
	}

	stats := AnnualResetStats{
		StartedAt: time.Now(),
		Year:      year,
		Errors:    make([]string, 0),
	}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastStats.Store(stats)
	}()

	j.logger.Info("annual close-out started", "year", year)

	dojos, err := j.roster.ListDojos(ctx)
	if err != nil {
		return fmt.Errorf("annual_reset: failed to list dojos: %w", err)
	}
	stats.DojosTotal = len(dojos)

	for _, dojoID := range dojos {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := j.closeDojo(ctx, dojoID, year)
		switch {
		case err != nil:
			stats.DojosFailed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", dojoID, err))
			j.logger.Error("dojo close-out failed", "dojo_id", dojoID, "year", year, "error", err)
		case outcome.skipped:
			stats.DojosSkipped++
		default:
			stats.DojosClosed++
			stats.StudentsArchived += outcome.archived
			stats.StudentsReset += outcome.reset
		}
	}

	j.publish(leaderboard.NewAnnualResetCompletedEvent(year, stats.DojosClosed, stats.StudentsReset, stats.DojosFailed))

	j.logger.Info("annual close-out completed",
		"year", year,
		"dojos_total", stats.DojosTotal,
		"dojos_closed", stats.DojosClosed,
		"dojos_skipped", stats.DojosSkipped,
		"dojos_failed", stats.DojosFailed,
		"students_archived", stats.StudentsArchived,
		"students_reset", stats.StudentsReset,
	)

	if stats.DojosFailed > 0 {
		return fmt.Errorf("annual_reset: %d of %d dojos failed", stats.DojosFailed, stats.DojosTotal)
	}

	return nil
}

// dojoOutcome is the result of closing one dojo.
type dojoOutcome struct {
	skipped  bool
	archived int
	reset    int
}

// closeDojo closes the season for a single dojo.
func (j *AnnualResetJob) closeDojo(ctx context.Context, dojoID string, year int) (dojoOutcome, error) {
	// The archive is the completion marker: its presence means this dojo has
	// already been through the whole close-out.
	done, err := j.historyRepo.HasSeason(ctx, dojoID, year)
	if err != nil {
		return dojoOutcome{}, fmt.Errorf("check archive: %w", err)
	}
	if done {
		j.logger.Info("season already archived, skipping", "dojo_id", dojoID, "year", year)
		return dojoOutcome{skipped: true}, nil
	}

	ranking, err := j.leaderboards.Rebuild(ctx, dojoID)
	if err != nil {
		return dojoOutcome{}, fmt.Errorf("build final standings: %w", err)
	}
	if ranking.IsEmpty() {
		j.logger.Info("dojo has no ranked students, nothing to close", "dojo_id", dojoID, "year", year)
		return dojoOutcome{skipped: true}, nil
	}

	records, err := j.xpRepo.ListByDojo(ctx, dojoID)
	if err != nil {
		return dojoOutcome{}, fmt.Errorf("load xp records: %w", err)
	}
	longestByStudent := make(map[string]int, len(records))
	for _, rec := range records {
		longestByStudent[rec.StudentID] = rec.LongestStreak
	}

	archived, err := j.archiveSeason(ctx, dojoID, year, ranking, longestByStudent)
	if err != nil {
		if errors.Is(err, leaderboard.ErrSeasonAlreadyArchived) {
			// A concurrent run got there first.
			return dojoOutcome{skipped: true}, nil
		}
		return dojoOutcome{}, err
	}

	if err := j.awardAnnualAchievements(ctx, dojoID, year, ranking); err != nil {
		return dojoOutcome{}, err
	}

	j.notifyPodium(ctx, dojoID, year, ranking)

	reset, err := j.resetSeason(ctx, dojoID, records)
	if err != nil {
		return dojoOutcome{}, err
	}

	j.notifySeasonReset(ctx, dojoID, year, ranking)
	j.publish(leaderboard.NewSeasonArchivedEvent(dojoID, year, archived))

	return dojoOutcome{archived: archived, reset: reset}, nil
}

// archiveSeason writes the final standings into the season archive.
func (j *AnnualResetJob) archiveSeason(
	ctx context.Context,
	dojoID string,
	year int,
	ranking *leaderboard.Ranking,
	longestByStudent map[string]int,
) (int, error) {
	entries := make([]*leaderboard.HistoryEntry, 0, ranking.Count())
	for _, e := range ranking.All() {
		he, err := leaderboard.NewHistoryEntry(uuid.NewString(), dojoID, year, e, longestByStudent[e.StudentID])
		if err != nil {
			return 0, fmt.Errorf("build archive entry: %w", err)
		}
		entries = append(entries, he)
	}

	if err := j.historyRepo.ArchiveSeason(ctx, entries); err != nil {
		return 0, err
	}

	return len(entries), nil
}

// awardAnnualAchievements unlocks rank-based achievements of the closed season.
// Unlocks are idempotent, so a replayed close-out never duplicates awards.
func (j *AnnualResetJob) awardAnnualAchievements(ctx context.Context, dojoID string, year int, ranking *leaderboard.Ranking) error {
	defs, err := j.achievementRepo.ListAnnualDefinitions(ctx, year)
	if err != nil {
		return fmt.Errorf("load annual catalog: %w", err)
	}

	for _, def := range defs {
		for _, e := range ranking.All() {
			if !def.IsSatisfiedByRank(int(e.Rank), year) {
				continue
			}

			unlock, err := achievement.NewUnlock(uuid.NewString(), e.StudentID, dojoID, def.ID)
			if err != nil {
				return fmt.Errorf("build unlock: %w", err)
			}

			inserted, err := j.achievementRepo.Unlock(ctx, unlock)
			if err != nil {
				return fmt.Errorf("unlock %s: %w", def.Code, err)
			}
			if inserted {
				j.publish(achievement.NewAchievementUnlockedEvent(unlock, def))
			}
		}
	}

	return nil
}

// notifyPodium congratulates the top three finishers.
// The podium always hears about it, even when no annual achievement matches.
func (j *AnnualResetJob) notifyPodium(ctx context.Context, dojoID string, year int, ranking *leaderboard.Ranking) {
	if j.notifier == nil {
		return
	}

	for rank := 1; rank <= 3; rank++ {
		entry := ranking.GetByRank(leaderboard.Rank(rank))
		if entry == nil {
			break
		}
		j.notifier.AnnualPodium(ctx, entry.StudentID, dojoID, rank, year)
	}
}

// resetSeason zeroes every XP record of the dojo, ranked or not.
func (j *AnnualResetJob) resetSeason(ctx context.Context, dojoID string, records []*gamification.StudentXP) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.StudentID
	}

	reset, err := j.xpRepo.ResetSeason(ctx, dojoID, ids)
	if err != nil {
		return 0, fmt.Errorf("reset records: %w", err)
	}

	if j.cache != nil {
		if err := j.cache.Invalidate(ctx, dojoID); err != nil {
			j.logger.Warn("failed to invalidate leaderboard cache", "dojo_id", dojoID, "error", err)
		}
	}

	return reset, nil
}

// notifySeasonReset tells every ranked student the new season has begun.
func (j *AnnualResetJob) notifySeasonReset(ctx context.Context, dojoID string, year int, ranking *leaderboard.Ranking) {
	if j.notifier == nil || !j.config.NotifySeasonReset {
		return
	}

	for _, e := range ranking.All() {
		j.notifier.SeasonReset(ctx, e.StudentID, dojoID, year+1)
	}
}

func (j *AnnualResetJob) publish(event shared.Event) {
	if j.eventPublisher == nil {
		return
	}
	if err := j.eventPublisher.Publish(event); err != nil {
		j.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// LastStats returns statistics from the last run.
func (j *AnnualResetJob) LastStats() (AnnualResetStats, bool) {
	stats, ok := j.lastStats.Load().(AnnualResetStats)
	return stats, ok
}
