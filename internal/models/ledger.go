package models

import "time"

// CarryMode selects which part of a semester 1 balance is carried forward.
type CarryMode string

const (
	// CarryModeFull carries the whole net balance once the threshold is reached.
	CarryModeFull CarryMode = "full"
	// CarryModeExcess carries only the part above the threshold.
	CarryModeExcess CarryMode = "excess"
)

// Valid reports whether m is a supported carry mode.
func (m CarryMode) Valid() bool {
	return m == CarryModeFull || m == CarryModeExcess
}

// PointStatus describes what happened to a semester 1 balance at the boundary.
type PointStatus string

const (
	PointStatusReset       PointStatus = "RESET"
	PointStatusCarriedOver PointStatus = "CARRIED_OVER"
)

// ResetPolicy parameterises the semester boundary rule.
type ResetPolicy struct {
	Threshold    int       `json:"threshold"`
	CarryMode    CarryMode `json:"carry_mode"`
	CarryPercent int       `json:"carry_percent"`
}

// Default policy values used when nothing else is configured.
const (
	DefaultResetThreshold = 60
	DefaultCarryPercent   = 100
)

// DefaultResetPolicy returns threshold 60, full carry at 100%.
func DefaultResetPolicy() ResetPolicy {
	return ResetPolicy{Threshold: DefaultResetThreshold, CarryMode: CarryModeFull, CarryPercent: DefaultCarryPercent}
}

// ResetOutcome is the result of applying a ResetPolicy to a semester 1 balance.
type ResetOutcome struct {
	Status             PointStatus `json:"status"`
	NextSemesterPoints int         `json:"next_semester_points"`
	Message            string      `json:"message"`
}

// AnomalyReason classifies an event excluded from ledger sums.
type AnomalyReason string

const (
	AnomalyRegulationMismatch AnomalyReason = "REGULATION_TYPE_MISMATCH"
	AnomalyNonPositivePoints  AnomalyReason = "NON_POSITIVE_POINTS"
	AnomalyInvalidSemester    AnomalyReason = "INVALID_SEMESTER"
)

// EventKind distinguishes violation and award rows in anomaly reports.
type EventKind string

const (
	EventKindViolation EventKind = "violation"
	EventKindAward     EventKind = "award"
)

// LedgerAnomaly flags an inconsistent event row that was left out of the totals.
type LedgerAnomaly struct {
	EventID   string        `json:"event_id"`
	EventKind EventKind     `json:"event_kind"`
	Reason    AnomalyReason `json:"reason"`
	Detail    string        `json:"detail"`
}

// StudentYearEvents is every event of one student in one school year, read from a single snapshot.
type StudentYearEvents struct {
	Violations []ViolationDetail
	Awards     []AwardDetail
}

// SemesterLedger is the derived point balance of a student for one semester.
type SemesterLedger struct {
	Student              Student           `json:"student"`
	SchoolYear           SchoolYear        `json:"school_year"`
	Semester             Semester          `json:"semester"`
	StartDate            time.Time         `json:"start_date"`
	EndDate              time.Time         `json:"end_date"`
	Policy               ResetPolicy       `json:"policy"`
	TotalViolationPoints int               `json:"total_violation_points"`
	TotalAwardPoints     int               `json:"total_award_points"`
	InitialPoints        int               `json:"initial_points"`
	NetPoints            int               `json:"net_points"`
	ViolationCount       int               `json:"violation_count"`
	AwardCount           int               `json:"award_count"`
	Violations           []ViolationDetail `json:"violations"`
	Awards               []AwardDetail     `json:"awards"`
	Anomalies            []LedgerAnomaly   `json:"anomalies"`
	// Reset is only set on semester 1 ledgers.
	Reset *ResetOutcome `json:"reset,omitempty"`
}

// YearlySummary composes both semester ledgers of a school year.
type YearlySummary struct {
	Student      Student        `json:"student"`
	SchoolYear   SchoolYear     `json:"school_year"`
	Semester1    SemesterLedger `json:"semester1"`
	Semester2    SemesterLedger `json:"semester2"`
	YearEndTotal int            `json:"year_end_total"`
}

// ClassStudentSummary is one student row of a class summary.
type ClassStudentSummary struct {
	Student              Student `json:"student"`
	TotalViolationPoints int     `json:"total_violation_points"`
	TotalAwardPoints     int     `json:"total_award_points"`
	InitialPoints        int     `json:"initial_points"`
	NetPoints            int     `json:"net_points"`
	ViolationCount       int     `json:"violation_count"`
	AwardCount           int     `json:"award_count"`
	AnomalyCount         int     `json:"anomaly_count"`
}

// ClassTotals sums every numeric column of a class summary.
type ClassTotals struct {
	StudentCount         int `json:"student_count"`
	TotalViolationPoints int `json:"total_violation_points"`
	TotalAwardPoints     int `json:"total_award_points"`
	NetPoints            int `json:"net_points"`
	ViolationCount       int `json:"violation_count"`
	AwardCount           int `json:"award_count"`
}

// ClassAverages holds per-student arithmetic means; all zero for an empty class.
type ClassAverages struct {
	TotalViolationPoints float64 `json:"total_violation_points"`
	TotalAwardPoints     float64 `json:"total_award_points"`
	NetPoints            float64 `json:"net_points"`
	ViolationCount       float64 `json:"violation_count"`
	AwardCount           float64 `json:"award_count"`
}

// ClassSummary aggregates the semester ledgers of every student enrolled in a class.
type ClassSummary struct {
	Class      ClassDetail           `json:"class"`
	SchoolYear SchoolYear            `json:"school_year"`
	Semester   Semester              `json:"semester"`
	StartDate  time.Time             `json:"start_date"`
	EndDate    time.Time             `json:"end_date"`
	Students   []ClassStudentSummary `json:"students"`
	Totals     ClassTotals           `json:"totals"`
	Averages   ClassAverages         `json:"averages"`
}
