package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT PROGRESS QUERY
// Текущий прогресс студента: XP, уровень, пояс, серия и журнал начислений.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentProgressQuery содержит параметры запроса.
type GetStudentProgressQuery struct {
	// StudentID - чей прогресс запрашивается.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// HistoryPage - страница журнала начислений (0 = журнал не нужен).
	HistoryPage int

	// HistoryPageSize - размер страницы журнала.
	HistoryPageSize int
}

// Validate проверяет корректность параметров.
func (q GetStudentProgressQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_student_progress: student_id is required")
	}
	if q.DojoID == "" {
		return errors.New("get_student_progress: dojo_id is required")
	}
	if q.HistoryPage < 0 {
		return errors.New("get_student_progress: history_page cannot be negative")
	}
	return nil
}

// XPHistoryEntryDTO - DTO одной записи журнала начислений.
type XPHistoryEntryDTO struct {
	BaseAmount   int     `json:"base_amount"`
	Granted      int     `json:"granted"`
	Multiplier   float64 `json:"multiplier"`
	Reason       string  `json:"reason"`
	SourceID     string  `json:"source_id,omitempty"`
	ActivityDate string  `json:"activity_date"`
	CreatedAt    string  `json:"created_at"`
}

// GetStudentProgressResult содержит результат запроса.
type GetStudentProgressResult struct {
	// StudentID - студент.
	StudentID string `json:"student_id"`

	// DojoID - додзё.
	DojoID string `json:"dojo_id"`

	// TotalXP - суммарный XP за сезон.
	TotalXP int `json:"total_xp"`

	// Level - текущий уровень.
	Level int `json:"level"`

	// Belt - текущий пояс.
	Belt string `json:"belt"`

	// XPToNextLevel - сколько XP осталось до следующего уровня.
	XPToNextLevel int `json:"xp_to_next_level"`

	// ProgressPercent - прогресс к следующему уровню (0-100).
	ProgressPercent int `json:"progress_percent"`

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - лучшая серия за сезон.
	LongestStreak int `json:"longest_streak"`

	// Multiplier - действующий множитель серии.
	Multiplier float64 `json:"multiplier"`

	// LastActivityDate - день последней активности (пусто до первого начисления).
	LastActivityDate string `json:"last_activity_date,omitempty"`

	// History - страница журнала начислений (от новых к старым).
	History []XPHistoryEntryDTO `json:"history,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStudentProgressHandler обрабатывает запросы прогресса студента.
type GetStudentProgressHandler struct {
	xpRepo      gamification.Repository
	historyRepo gamification.HistoryRepository
	policy      gamification.StreakPolicy
}

// NewGetStudentProgressHandler создаёт новый обработчик.
func NewGetStudentProgressHandler(
	xpRepo gamification.Repository,
	historyRepo gamification.HistoryRepository,
	policy gamification.StreakPolicy,
) *GetStudentProgressHandler {
	if policy.IsEmpty() {
		policy = gamification.DefaultStreakPolicy()
	}

	return &GetStudentProgressHandler{
		xpRepo:      xpRepo,
		historyRepo: historyRepo,
		policy:      policy,
	}
}

// Handle выполняет запрос прогресса.
// Отсутствие записи XP - не ошибка: возвращается нулевой прогресс.
func (h *GetStudentProgressHandler) Handle(ctx context.Context, q GetStudentProgressQuery) (*GetStudentProgressResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	record, err := h.xpRepo.Find(ctx, q.StudentID, q.DojoID)
	switch {
	case err == nil:
	case errors.Is(err, gamification.ErrRecordNotFound):
		record, err = gamification.NewStudentXP(q.StudentID, q.DojoID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("get_student_progress: failed to load xp record: %w", err)
	}

	result := &GetStudentProgressResult{
		StudentID:       record.StudentID,
		DojoID:          record.DojoID,
		TotalXP:         record.TotalXP.Int(),
		Level:           record.Level.Int(),
		Belt:            string(record.Belt()),
		XPToNextLevel:   int(gamification.XPToReachLevel(record.Level+1) - record.TotalXP),
		ProgressPercent: gamification.ProgressPercent(record.TotalXP, record.Level),
		CurrentStreak:   record.CurrentStreak,
		LongestStreak:   record.LongestStreak,
		Multiplier:      h.policy.MultiplierFor(record.CurrentStreak),
		GeneratedAt:     time.Now().UTC(),
	}
	if record.LastActivityDate != nil && !record.LastActivityDate.IsZero() {
		result.LastActivityDate = record.LastActivityDate.String()
	}

	if q.HistoryPage > 0 && h.historyRepo != nil {
		p := shared.NewPagination(q.HistoryPage, q.HistoryPageSize)
		entries, err := h.historyRepo.ListByStudent(ctx, q.StudentID, q.DojoID, p)
		if err != nil {
			return nil, fmt.Errorf("get_student_progress: failed to load history: %w", err)
		}

		result.History = make([]XPHistoryEntryDTO, len(entries))
		for i, e := range entries {
			result.History[i] = XPHistoryEntryDTO{
				BaseAmount:   e.BaseAmount.Int(),
				Granted:      e.Granted.Int(),
				Multiplier:   e.Multiplier,
				Reason:       e.Reason,
				SourceID:     e.SourceID,
				ActivityDate: e.ActivityDate.String(),
				CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
			}
		}
	}

	return result, nil
}
