// Package redis implements Redis caching for Dojo Gamification Hub.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrDojoIDEmpty is returned when an empty dojo ID is provided.
	ErrDojoIDEmpty = errors.New("leaderboard_cache: dojo id cannot be empty")

	// ErrStudentNotInLeaderboard is returned when a student is not in the cached ranking.
	ErrStudentNotInLeaderboard = errors.New("leaderboard_cache: student not in leaderboard")
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// cachedEntry is the JSON shape of one leaderboard row in Redis.
type cachedEntry struct {
	Rank             int       `json:"rank"`
	StudentID        string    `json:"student_id"`
	DisplayName      string    `json:"display_name"`
	TotalXP          int       `json:"total_xp"`
	Level            int       `json:"level"`
	Belt             string    `json:"belt"`
	CurrentStreak    int       `json:"current_streak"`
	AchievementCount int       `json:"achievement_count"`
	FirstActivityAt  time.Time `json:"first_activity_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// LeaderboardCache implements leaderboard.Cache using Redis Sorted Sets.
//
// Layout per dojo:
//   - Sorted set "leaderboard:xp:{dojo}" stores studentID -> XP for rank queries
//   - Hash "leaderboard:info:{dojo}" stores studentID -> entry JSON
//   - String "leaderboard:order:{dojo}" stores the ranked ID order
//
// The explicit order key matters because ties are broken by season start
// time and student ID, which a score-only sorted set cannot express.
type LeaderboardCache struct {
	cache *Cache
}

// Key patterns for leaderboard cache.
const (
	keyLeaderboardXP    = "leaderboard:xp:"
	keyLeaderboardInfo  = "leaderboard:info:"
	keyLeaderboardOrder = "leaderboard:order:"
)

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// ─────────────────────────────────────────────────────────────────────────────
// leaderboard.Cache implementation
// ─────────────────────────────────────────────────────────────────────────────

// GetRanking returns the cached ranking of a dojo.
// Returns (nil, nil) on a cache miss.
func (l *LeaderboardCache) GetRanking(ctx context.Context, dojoID string) (*leaderboard.Ranking, error) {
	if dojoID == "" {
		return nil, ErrDojoIDEmpty
	}

	orderData, err := l.cache.Client().Get(ctx, keyLeaderboardOrder+dojoID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var order []string
	if err := json.Unmarshal(orderData, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if len(order) == 0 {
		return leaderboard.NewRanking(dojoID), nil
	}

	infoData, err := l.cache.Client().HMGet(ctx, keyLeaderboardInfo+dojoID, order...).Result()
	if err != nil {
		return nil, err
	}

	ranking := leaderboard.NewRanking(dojoID)
	for _, v := range infoData {
		str, ok := v.(string)
		if !ok {
			// A partially evicted hash means the cache is stale; treat as miss.
			return nil, nil
		}

		var ce cachedEntry
		if err := json.Unmarshal([]byte(str), &ce); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}

		if err := ranking.Add(fromCachedEntry(ce)); err != nil {
			return nil, err
		}
	}

	return ranking, nil
}

// StoreRanking saves a sorted ranking with the given TTL.
func (l *LeaderboardCache) StoreRanking(ctx context.Context, ranking *leaderboard.Ranking, ttl time.Duration) error {
	if ranking == nil {
		return ErrCacheNilValue
	}
	if ranking.DojoID() == "" {
		return ErrDojoIDEmpty
	}
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}

	dojoID := ranking.DojoID()
	xpKey := keyLeaderboardXP + dojoID
	infoKey := keyLeaderboardInfo + dojoID
	orderKey := keyLeaderboardOrder + dojoID

	entries := ranking.All()
	order := make([]string, 0, len(entries))
	zMembers := make([]redis.Z, 0, len(entries))
	hashData := make(map[string]interface{}, len(entries))

	for _, entry := range entries {
		order = append(order, entry.StudentID)

		zMembers = append(zMembers, redis.Z{
			Score:  float64(entry.TotalXP),
			Member: entry.StudentID,
		})

		data, err := json.Marshal(toCachedEntry(entry))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		hashData[entry.StudentID] = data
	}

	orderData, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	// Rebuild atomically so readers never see a half-written ranking.
	pipe := l.cache.Client().TxPipeline()
	pipe.Del(ctx, xpKey, infoKey, orderKey)

	if len(zMembers) > 0 {
		pipe.ZAdd(ctx, xpKey, zMembers...)
		pipe.HSet(ctx, infoKey, hashData)
		pipe.Expire(ctx, xpKey, ttl)
		pipe.Expire(ctx, infoKey, ttl)
	}
	pipe.Set(ctx, orderKey, orderData, ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes the cached ranking of a dojo.
func (l *LeaderboardCache) Invalidate(ctx context.Context, dojoID string) error {
	if dojoID == "" {
		return ErrDojoIDEmpty
	}

	return l.cache.Client().Del(ctx,
		keyLeaderboardXP+dojoID,
		keyLeaderboardInfo+dojoID,
		keyLeaderboardOrder+dojoID,
	).Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Fast-path queries against the sorted set
// ─────────────────────────────────────────────────────────────────────────────

// GetXP returns the cached XP of a student. O(1) against the sorted set.
func (l *LeaderboardCache) GetXP(ctx context.Context, studentID, dojoID string) (int, error) {
	if dojoID == "" {
		return 0, ErrDojoIDEmpty
	}

	score, err := l.cache.Client().ZScore(ctx, keyLeaderboardXP+dojoID, studentID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrStudentNotInLeaderboard
		}
		return 0, err
	}

	return int(score), nil
}

// GetCount returns the number of cached entries for a dojo.
func (l *LeaderboardCache) GetCount(ctx context.Context, dojoID string) (int64, error) {
	if dojoID == "" {
		return 0, ErrDojoIDEmpty
	}

	return l.cache.Client().ZCard(ctx, keyLeaderboardXP+dojoID).Result()
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversion helpers
// ─────────────────────────────────────────────────────────────────────────────

func toCachedEntry(e *leaderboard.Entry) cachedEntry {
	return cachedEntry{
		Rank:             int(e.Rank),
		StudentID:        e.StudentID,
		DisplayName:      e.DisplayName,
		TotalXP:          int(e.TotalXP),
		Level:            int(e.Level),
		Belt:             string(e.Belt),
		CurrentStreak:    e.CurrentStreak,
		AchievementCount: e.AchievementCount,
		FirstActivityAt:  e.FirstActivityAt,
		UpdatedAt:        e.UpdatedAt,
	}
}

func fromCachedEntry(ce cachedEntry) *leaderboard.Entry {
	return &leaderboard.Entry{
		Rank:             leaderboard.Rank(ce.Rank),
		StudentID:        ce.StudentID,
		DisplayName:      ce.DisplayName,
		TotalXP:          gamification.XP(ce.TotalXP),
		Level:            gamification.Level(ce.Level),
		Belt:             gamification.Belt(ce.Belt),
		CurrentStreak:    ce.CurrentStreak,
		AchievementCount: ce.AchievementCount,
		FirstActivityAt:  ce.FirstActivityAt,
		UpdatedAt:        ce.UpdatedAt,
	}
}
