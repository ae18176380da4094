// Package http implements the REST API of Dojo Gamification Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dojo-hub/dojo-gamification-hub/internal/application/command"
	"github.com/dojo-hub/dojo-gamification-hub/internal/application/query"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/infrastructure/scheduler"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/logger"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Dojo Gamification Hub API",
		"version":     "v1",
		"description": "XP, streaks, achievements and leaderboards for martial arts dojos",
		"endpoints": map[string]string{
			"health":      "/health",
			"grant_xp":    "/api/v1/xp/grant",
			"leaderboard": "/api/v1/dojos/{dojo}/leaderboard",
			"progress":    "/api/v1/students/{id}/progress",
			"rank":        "/api/v1/students/{id}/rank",
			"seasons":     "/api/v1/students/{id}/seasons",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// XP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// grantXPRequest is the request body of POST /api/v1/xp/grant.
type grantXPRequest struct {
	StudentID string `json:"student_id"`
	DojoID    string `json:"dojo_id"`
	Amount    int    `json:"amount"`

	// ActivityDate in YYYY-MM-DD; empty means today (UTC).
	ActivityDate string `json:"activity_date,omitempty"`

	Reason   string `json:"reason"`
	SourceID string `json:"source_id,omitempty"`

	// TasksCompleted - the caller's running task counter, used for the
	// achievement check after the grant. Negative skips the check.
	TasksCompleted int `json:"tasks_completed,omitempty"`
}

// grantXPResponse is the response body of POST /api/v1/xp/grant.
type grantXPResponse struct {
	StudentID      string  `json:"student_id"`
	DojoID         string  `json:"dojo_id"`
	Granted        int     `json:"granted"`
	Multiplier     float64 `json:"multiplier"`
	TotalXP        int     `json:"total_xp"`
	Level          int     `json:"level"`
	Belt           string  `json:"belt"`
	LeveledUp      bool    `json:"leveled_up"`
	CurrentStreak  int     `json:"current_streak"`
	StreakExtended bool    `json:"streak_extended"`
	StreakBroken   bool    `json:"streak_broken"`
	PreviousStreak int     `json:"previous_streak,omitempty"`

	UnlockedAchievements []unlockedAchievementDTO `json:"unlocked_achievements,omitempty"`
}

type unlockedAchievementDTO struct {
	AchievementID string `json:"achievement_id"`
	Name          string `json:"name"`
	Emoji         string `json:"emoji,omitempty"`
	RewardXP      int    `json:"reward_xp"`
}

// handleGrantXP handles POST /api/v1/xp/grant.
//
// The grant itself and the follow-up achievement check are separate steps:
// a failed check never undoes a successful grant.
func (s *Server) handleGrantXP(w http.ResponseWriter, r *http.Request) {
	if s.deps.GrantXPHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Grant handler not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req grantXPRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	var day timeutil.Date
	if req.ActivityDate != "" {
		day, err = timeutil.ParseDate(req.ActivityDate)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "activity_date must be YYYY-MM-DD")
			return
		}
	}

	cmd := command.GrantXPCommand{
		StudentID:     req.StudentID,
		DojoID:        req.DojoID,
		BaseAmount:    gamification.XP(req.Amount),
		ActivityDate:  day,
		Reason:        req.Reason,
		SourceID:      req.SourceID,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.GrantXPHandler.Handle(r.Context(), cmd)
	if err != nil {
		if strings.Contains(err.Error(), "validation failed") {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		s.logger.Error("failed to grant xp",
			logger.Err(err),
			logger.StudentID(req.StudentID),
			logger.DojoID(req.DojoID),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to grant XP")
		return
	}

	resp := grantXPResponse{
		StudentID:      result.StudentID,
		DojoID:         result.DojoID,
		Granted:        int(result.Granted),
		Multiplier:     result.Multiplier,
		TotalXP:        int(result.NewTotal),
		Level:          int(result.NewLevel),
		Belt:           string(result.NewBelt),
		LeveledUp:      result.LeveledUp,
		CurrentStreak:  result.CurrentStreak,
		StreakExtended: result.StreakExtended,
		StreakBroken:   result.StreakBroken,
		PreviousStreak: result.PreviousStreak,
	}

	if s.deps.CheckAchievementsHandler != nil && req.TasksCompleted >= 0 {
		check, err := s.deps.CheckAchievementsHandler.Handle(r.Context(), command.CheckAchievementsCommand{
			StudentID:      req.StudentID,
			DojoID:         req.DojoID,
			TasksCompleted: req.TasksCompleted,
			CorrelationID:  getRequestID(r.Context()),
		})
		if err != nil {
			s.logger.Warn("achievement check failed after grant",
				logger.Err(err),
				logger.StudentID(req.StudentID),
			)
		} else {
			for _, ua := range check.NewlyUnlocked {
				resp.UnlockedAchievements = append(resp.UnlockedAchievements, unlockedAchievementDTO{
					AchievementID: ua.Definition.ID,
					Name:          ua.Definition.Name,
					Emoji:         ua.Definition.Emoji,
					RewardXP:      int(ua.Definition.XPReward),
				})
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboard handles GET /api/v1/dojos/{dojo}/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLeaderboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard handler not configured")
		return
	}

	q := query.GetLeaderboardQuery{
		DojoID: r.PathValue("dojo"),
		Limit:  getQueryParamInt(r, "limit", 20),
		Offset: getQueryParamInt(r, "offset", 0),
	}

	result, err := s.deps.GetLeaderboardHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get leaderboard", logger.Err(err), logger.DojoID(q.DojoID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get leaderboard")
		return
	}

	meta := &ResponseMeta{
		TotalCount: result.TotalCount,
		HasMore:    result.HasMore,
		FromCache:  result.FromCache,
	}

	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// handleGetSeasonArchive handles GET /api/v1/dojos/{dojo}/history/{year}
func (s *Server) handleGetSeasonArchive(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSeasonHistoryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "History handler not configured")
		return
	}

	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Year must be a number")
		return
	}

	q := query.GetSeasonHistoryQuery{
		DojoID: r.PathValue("dojo"),
		Year:   year,
	}

	result, err := s.deps.GetSeasonHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get season archive", logger.Err(err), logger.DojoID(q.DojoID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get season archive")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudentProgress handles GET /api/v1/students/{id}/progress
func (s *Server) handleGetStudentProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetStudentProgressQuery{
		StudentID:       r.PathValue("id"),
		DojoID:          getQueryParam(r, "dojo", ""),
		HistoryPage:     getQueryParamInt(r, "history_page", 0),
		HistoryPageSize: getQueryParamInt(r, "history_page_size", 0),
	}

	result, err := s.deps.GetStudentProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get progress", logger.Err(err), logger.StudentID(q.StudentID))
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudentRank handles GET /api/v1/students/{id}/rank
func (s *Server) handleGetStudentRank(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStudentRankHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Rank handler not configured")
		return
	}

	q := query.GetStudentRankQuery{
		StudentID: r.PathValue("id"),
		DojoID:    getQueryParam(r, "dojo", ""),
	}

	result, err := s.deps.GetStudentRankHandler.Handle(r.Context(), q)
	if err != nil {
		if errors.Is(err, query.ErrStudentNotRanked) {
			writeJSONError(w, http.StatusNotFound, "not_found", "Student is not ranked in this dojo")
			return
		}
		s.logger.Error("failed to get student rank", logger.Err(err), logger.StudentID(q.StudentID))
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetStudentSeasons handles GET /api/v1/students/{id}/seasons
func (s *Server) handleGetStudentSeasons(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSeasonHistoryHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "History handler not configured")
		return
	}

	q := query.GetSeasonHistoryQuery{
		StudentID: r.PathValue("id"),
	}

	result, err := s.deps.GetSeasonHistoryHandler.Handle(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to get student seasons", logger.Err(err), logger.StudentID(q.StudentID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get student seasons")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// withAdminAuth guards an endpoint with the configured admin token.
// The token travels as "Authorization: Bearer <token>" and is checked
// against a bcrypt hash, so the plain token never lives in config.
func (s *Server) withAdminAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminTokenHash == "" {
			writeJSONError(w, http.StatusNotFound, "not_found", "Not found")
			return
		}

		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminTokenHash), []byte(token)); err != nil {
			s.logger.Warn("admin auth failed", logger.String("ip", getClientIP(r)))
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		next(w, r)
	}
}

// handleListJobs handles GET /internal/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Scheduler.ListJobs())
}

// handleRunJob handles POST /internal/jobs/{name}/run
//
// Lets an operator trigger the annual close-out (or a leaderboard rebuild)
// without waiting for the schedule.
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Scheduler not configured")
		return
	}

	name := r.PathValue("name")

	result, err := s.deps.Scheduler.RunNow(r.Context(), name)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", "Unknown job: "+name)
			return
		}
		s.logger.Error("manual job run failed", logger.Err(err), logger.String("job", name))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Job run failed: "+err.Error())
		return
	}

	resp := map[string]interface{}{
		"job":          result.JobName,
		"success":      result.Success,
		"started_at":   result.StartedAt,
		"completed_at": result.CompletedAt,
		"duration_ms":  result.Duration.Milliseconds(),
	}
	if result.Error != nil {
		resp["error"] = result.Error.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}
