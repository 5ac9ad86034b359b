package models

import (
	"regexp"
	"time"
)

var schoolYearPattern = regexp.MustCompile(`^\d{4}$`)

// ValidSchoolYear reports whether raw is a four-digit year string such as "2024".
func ValidSchoolYear(raw string) bool {
	return schoolYearPattern.MatchString(raw)
}

// Semester identifies one half of a school year.
type Semester int

const (
	// SemesterOdd is the first (ganjil) semester.
	SemesterOdd Semester = 1
	// SemesterEven is the second (genap) semester.
	SemesterEven Semester = 2
)

// Valid reports whether s is 1 or 2.
func (s Semester) Valid() bool {
	return s == SemesterOdd || s == SemesterEven
}

// SchoolYear is the accounting year with its semester calendar and an optional
// per-year reset policy override.
type SchoolYear struct {
	ID             string    `db:"id" json:"id"`
	Year           string    `db:"year" json:"year"`
	Name           string    `db:"name" json:"name"`
	Semester1Start time.Time `db:"semester1_start" json:"semester1_start"`
	Semester1End   time.Time `db:"semester1_end" json:"semester1_end"`
	Semester2Start time.Time `db:"semester2_start" json:"semester2_start"`
	Semester2End   time.Time `db:"semester2_end" json:"semester2_end"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	ResetThreshold *int      `db:"reset_threshold" json:"reset_threshold,omitempty"`
	CarryMode      *string   `db:"carry_mode" json:"carry_mode,omitempty"`
	CarryPercent   *int      `db:"carry_percent" json:"carry_percent,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// SemesterRange returns the first and last day of the requested semester.
func (y SchoolYear) SemesterRange(s Semester) (time.Time, time.Time) {
	if s == SemesterEven {
		return y.Semester2Start, y.Semester2End
	}
	return y.Semester1Start, y.Semester1End
}

// SemesterOf maps a timestamp to the semester whose calendar contains it.
func (y SchoolYear) SemesterOf(t time.Time) (Semester, bool) {
	if within(t, y.Semester1Start, y.Semester1End) {
		return SemesterOdd, true
	}
	if within(t, y.Semester2Start, y.Semester2End) {
		return SemesterEven, true
	}
	return 0, false
}

// within treats end as an inclusive calendar day.
func within(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end.AddDate(0, 0, 1))
}
