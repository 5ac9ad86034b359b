package service

import (
	"fmt"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

// ValidateResetPolicy checks that a policy can be applied.
func ValidateResetPolicy(p models.ResetPolicy) error {
	if p.Threshold < 0 {
		return fmt.Errorf("reset threshold must not be negative, got %d", p.Threshold)
	}
	if !p.CarryMode.Valid() {
		return fmt.Errorf("unknown carry mode %q", p.CarryMode)
	}
	if p.CarryPercent < 0 || p.CarryPercent > 100 {
		return fmt.Errorf("carry percent must be within 0..100, got %d", p.CarryPercent)
	}
	return nil
}

// ApplyResetRule decides how much of a semester 1 net balance is carried into
// semester 2. Below the threshold the balance resets to zero; at or above it the
// carried base (whole balance or the part above the threshold) is scaled by
// CarryPercent and rounded down.
func ApplyResetRule(netPoints int, p models.ResetPolicy) models.ResetOutcome {
	if netPoints < 0 {
		netPoints = 0
	}
	if netPoints < p.Threshold {
		return models.ResetOutcome{
			Status:             models.PointStatusReset,
			NextSemesterPoints: 0,
			Message: fmt.Sprintf("Semester 1 balance of %d points is below the reset threshold of %d; semester 2 starts from 0 points.",
				netPoints, p.Threshold),
		}
	}

	base := netPoints
	if p.CarryMode == models.CarryModeExcess {
		base = netPoints - p.Threshold
	}
	carry := base * p.CarryPercent / 100

	var message string
	if p.CarryMode == models.CarryModeExcess {
		message = fmt.Sprintf("Semester 1 balance of %d points reached the reset threshold of %d; %d points (%d%% of the %d points above the threshold) carry into semester 2.",
			netPoints, p.Threshold, carry, p.CarryPercent, base)
	} else {
		message = fmt.Sprintf("Semester 1 balance of %d points reached the reset threshold of %d; %d points (%d%% of the balance) carry into semester 2.",
			netPoints, p.Threshold, carry, p.CarryPercent)
	}
	return models.ResetOutcome{
		Status:             models.PointStatusCarriedOver,
		NextSemesterPoints: carry,
		Message:            message,
	}
}

// semesterTotals is the pure result of folding one semester's events.
type semesterTotals struct {
	violationPoints int
	awardPoints     int
	violations      []models.ViolationDetail
	awards          []models.AwardDetail
	anomalies       []models.LedgerAnomaly
}

// foldSemester sums the events of one (student, year, semester) key. Rows outside
// the key are ignored; inconsistent rows inside it are reported as anomalies and
// left out of the sums. Awards count only once approved.
func foldSemester(events models.StudentYearEvents, studentID, year string, semester models.Semester) semesterTotals {
	totals := semesterTotals{
		violations: make([]models.ViolationDetail, 0),
		awards:     make([]models.AwardDetail, 0),
		anomalies:  make([]models.LedgerAnomaly, 0),
	}

	for _, v := range events.Violations {
		if v.StudentID != studentID || v.SchoolYear != year {
			continue
		}
		if !v.Semester.Valid() {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: v.ID, EventKind: models.EventKindViolation, Reason: models.AnomalyInvalidSemester,
				Detail: fmt.Sprintf("semester %d is not 1 or 2", v.Semester),
			})
			continue
		}
		if v.Semester != semester {
			continue
		}
		if v.RegulationType != models.RegulationTypeViolation {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: v.ID, EventKind: models.EventKindViolation, Reason: models.AnomalyRegulationMismatch,
				Detail: fmt.Sprintf("violation references regulation %s of type %q", v.RegulationID, v.RegulationType),
			})
			continue
		}
		if v.Points <= 0 {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: v.ID, EventKind: models.EventKindViolation, Reason: models.AnomalyNonPositivePoints,
				Detail: fmt.Sprintf("points %d", v.Points),
			})
			continue
		}
		totals.violationPoints += v.Points
		totals.violations = append(totals.violations, v)
	}

	for _, a := range events.Awards {
		if a.StudentID != studentID || a.SchoolYear != year || a.Status != models.AwardStatusApproved {
			continue
		}
		if !a.Semester.Valid() {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: a.ID, EventKind: models.EventKindAward, Reason: models.AnomalyInvalidSemester,
				Detail: fmt.Sprintf("semester %d is not 1 or 2", a.Semester),
			})
			continue
		}
		if a.Semester != semester {
			continue
		}
		if a.RegulationType != models.RegulationTypeAward {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: a.ID, EventKind: models.EventKindAward, Reason: models.AnomalyRegulationMismatch,
				Detail: fmt.Sprintf("award references regulation %s of type %q", a.RegulationID, a.RegulationType),
			})
			continue
		}
		if a.Points <= 0 {
			totals.anomalies = append(totals.anomalies, models.LedgerAnomaly{
				EventID: a.ID, EventKind: models.EventKindAward, Reason: models.AnomalyNonPositivePoints,
				Detail: fmt.Sprintf("points %d", a.Points),
			})
			continue
		}
		totals.awardPoints += a.Points
		totals.awards = append(totals.awards, a)
	}

	return totals
}

// semesterLedger builds a ledger from folded totals and the carry-in balance.
func semesterLedger(student models.Student, year models.SchoolYear, semester models.Semester, policy models.ResetPolicy, totals semesterTotals, initial int) models.SemesterLedger {
	start, end := year.SemesterRange(semester)
	net := initial + totals.violationPoints - totals.awardPoints
	if net < 0 {
		net = 0
	}
	return models.SemesterLedger{
		Student:              student,
		SchoolYear:           year,
		Semester:             semester,
		StartDate:            start,
		EndDate:              end,
		Policy:               policy,
		TotalViolationPoints: totals.violationPoints,
		TotalAwardPoints:     totals.awardPoints,
		InitialPoints:        initial,
		NetPoints:            net,
		ViolationCount:       len(totals.violations),
		AwardCount:           len(totals.awards),
		Violations:           totals.violations,
		Awards:               totals.awards,
		Anomalies:            totals.anomalies,
	}
}

// deriveYear computes both semester ledgers of a student from one event snapshot.
// Semester 2 always starts from the carry produced by semester 1.
func deriveYear(student models.Student, year models.SchoolYear, policy models.ResetPolicy, events models.StudentYearEvents) (models.SemesterLedger, models.SemesterLedger) {
	first := semesterLedger(student, year, models.SemesterOdd, policy,
		foldSemester(events, student.ID, year.Year, models.SemesterOdd), 0)
	outcome := ApplyResetRule(first.NetPoints, policy)
	first.Reset = &outcome

	second := semesterLedger(student, year, models.SemesterEven, policy,
		foldSemester(events, student.ID, year.Year, models.SemesterEven), outcome.NextSemesterPoints)
	return first, second
}

// deriveSemester returns the ledger of the requested semester.
func deriveSemester(student models.Student, year models.SchoolYear, semester models.Semester, policy models.ResetPolicy, events models.StudentYearEvents) models.SemesterLedger {
	first, second := deriveYear(student, year, policy, events)
	if semester == models.SemesterEven {
		return second
	}
	return first
}
