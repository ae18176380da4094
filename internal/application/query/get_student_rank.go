package query

import (
	"context"
	"errors"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT RANK QUERY
// Место одного студента в лидерборде своего додзё.
// ══════════════════════════════════════════════════════════════════════════════

// ErrStudentNotRanked - студента нет в лидерборде додзё.
var ErrStudentNotRanked = errors.New("get_student_rank: student is not ranked in this dojo")

// GetStudentRankQuery содержит параметры запроса.
type GetStudentRankQuery struct {
	// StudentID - чьё место запрашивается.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string
}

// Validate проверяет корректность параметров.
func (q GetStudentRankQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_student_rank: student_id is required")
	}
	if q.DojoID == "" {
		return errors.New("get_student_rank: dojo_id is required")
	}
	return nil
}

// GetStudentRankResult содержит результат запроса.
type GetStudentRankResult struct {
	// Entry - строка лидерборда студента.
	Entry LeaderboardEntryDTO `json:"entry"`

	// TotalStudents - общее количество участников.
	TotalStudents int `json:"total_students"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStudentRankHandler обрабатывает запросы места студента.
// Переиспользует лидерборд, которым владеет GetLeaderboardHandler.
type GetStudentRankHandler struct {
	leaderboards *GetLeaderboardHandler
}

// NewGetStudentRankHandler создаёт новый обработчик.
func NewGetStudentRankHandler(leaderboards *GetLeaderboardHandler) *GetStudentRankHandler {
	return &GetStudentRankHandler{leaderboards: leaderboards}
}

// Handle выполняет запрос места студента.
func (h *GetStudentRankHandler) Handle(ctx context.Context, q GetStudentRankQuery) (*GetStudentRankResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ranking, _, err := h.leaderboards.Snapshot(ctx, q.DojoID)
	if err != nil {
		return nil, err
	}

	entry := ranking.GetByID(q.StudentID)
	if entry == nil {
		return nil, ErrStudentNotRanked
	}

	return &GetStudentRankResult{
		Entry:         toEntryDTO(entry),
		TotalStudents: ranking.Count(),
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
