// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// StudentID represents a unique student identifier (UUID format).
type StudentID string

// IsValid checks if the student ID is a valid UUID.
func (s StudentID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID creates a new StudentID with validation.
func NewStudentID(id string) (StudentID, error) {
	sid := StudentID(strings.ToLower(strings.TrimSpace(id)))
	if !sid.IsValid() {
		return "", ErrInvalidStudentID
	}
	return sid, nil
}

// DojoID represents a unique dojo identifier (UUID format).
// Every XP record, achievement and leaderboard is scoped to a dojo.
type DojoID string

// IsValid checks if the dojo ID is a valid UUID.
func (d DojoID) IsValid() bool {
	return uuidRegex.MatchString(string(d))
}

// String returns the string representation.
func (d DojoID) String() string {
	return string(d)
}

// IsEmpty checks if the ID is empty.
func (d DojoID) IsEmpty() bool {
	return d == ""
}

// NewDojoID creates a new DojoID with validation.
func NewDojoID(id string) (DojoID, error) {
	did := DojoID(strings.ToLower(strings.TrimSpace(id)))
	if !did.IsValid() {
		return "", ErrInvalidDojoID
	}
	return did, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a student's position in the leaderboard.
// Ranks are dense and 1-based: two students never share a rank.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // Not yet ranked
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the student is not yet ranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// IsPodium checks if the rank takes a podium place.
func (r Rank) IsPodium() bool {
	return r.IsTop(3)
}

// Medal returns a medal emoji for top ranks.
func (r Rank) Medal() string {
	switch r {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}

// Compare returns the difference between two ranks.
// Positive value means improvement (moved up), negative means dropped.
func (r Rank) Compare(other Rank) int {
	return int(other) - int(r)
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return Unranked, NewDomainError("shared", "NewRank", ErrNegativeValue, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// SeasonYear Value Object
// ═══════════════════════════════════════════════════════════════════════════

// SeasonYear represents a leaderboard season. Seasons follow calendar years.
type SeasonYear int

// IsValid checks if the season year is plausible.
func (y SeasonYear) IsValid() bool {
	return y >= 2000 && y <= 2200
}

// Int returns the underlying int value.
func (y SeasonYear) Int() int {
	return int(y)
}

// Previous returns the season before this one.
func (y SeasonYear) Previous() SeasonYear {
	return y - 1
}

// NewSeasonYear creates a new SeasonYear with validation.
func NewSeasonYear(year int) (SeasonYear, error) {
	y := SeasonYear(year)
	if !y.IsValid() {
		return 0, NewDomainError("shared", "NewSeasonYear", ErrValueOutOfRange, "season year out of range")
	}
	return y, nil
}

// CurrentSeason returns the season containing the given time (UTC).
func CurrentSeason(t time.Time) SeasonYear {
	return SeasonYear(t.UTC().Year())
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
