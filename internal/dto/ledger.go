package dto

import (
	"time"

	"github.com/noah-isme/sma-discipline-api/internal/models"
)

const dateLayout = "2006-01-02"

// StudentRef is the compact student shape embedded in ledger payloads.
type StudentRef struct {
	ID       string `json:"id"`
	NIS      string `json:"nis"`
	FullName string `json:"fullName"`
}

// SchoolYearRef names the school year a ledger belongs to.
type SchoolYearRef struct {
	Year string `json:"year"`
	Name string `json:"name"`
}

// LedgerEvent is one violation or award line of a ledger.
type LedgerEvent struct {
	ID             string             `json:"id"`
	RegulationID   string             `json:"regulationId"`
	RegulationName string             `json:"regulationName"`
	Category       string             `json:"category"`
	ActionTaken    string             `json:"actionTaken,omitempty"`
	Points         int                `json:"points"`
	Description    string             `json:"description,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
	Status         models.AwardStatus `json:"status,omitempty"`
}

// LedgerAnomaly reports an event excluded from the sums.
type LedgerAnomaly struct {
	EventID   string               `json:"eventId"`
	EventKind models.EventKind     `json:"eventKind"`
	Reason    models.AnomalyReason `json:"reason"`
	Detail    string               `json:"detail,omitempty"`
}

// SemesterLedgerResponse is the /violation-summary/semester payload.
type SemesterLedgerResponse struct {
	Student            StudentRef      `json:"student"`
	Semester           int             `json:"semester"`
	SchoolYear         SchoolYearRef   `json:"schoolYear"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	TotalPoints        int             `json:"totalPoints"`
	TotalAwardPoints   int             `json:"totalAwardPoints"`
	InitialPoints      int             `json:"initialPoints"`
	NetPoints          int             `json:"netPoints"`
	ViolationCount     int             `json:"violationCount"`
	AwardCount         int             `json:"awardCount"`
	PointStatus        string          `json:"pointStatus,omitempty"`
	ResetMessage       *string         `json:"resetMessage,omitempty"`
	NextSemesterPoints *int            `json:"nextSemesterPoints,omitempty"`
	Violations         []LedgerEvent   `json:"violations"`
	Awards             []LedgerEvent   `json:"awards"`
	Anomalies          []LedgerAnomaly `json:"anomalies"`
}

// YearlySummaryResponse is the /violation-summary/yearly payload.
type YearlySummaryResponse struct {
	Student      StudentRef             `json:"student"`
	SchoolYear   SchoolYearRef          `json:"schoolYear"`
	Semester1    SemesterLedgerResponse `json:"semester1"`
	Semester2    SemesterLedgerResponse `json:"semester2"`
	YearEndTotal int                    `json:"yearEndTotal"`
}

// DateRange bounds a semester.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ClassRef names the class of a summary.
type ClassRef struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Grade               string  `json:"grade,omitempty"`
	HomeroomTeacherName *string `json:"homeroomTeacherName,omitempty"`
}

// ClassStudentRow is one student line of a class summary.
type ClassStudentRow struct {
	Student              StudentRef `json:"student"`
	TotalViolationPoints int        `json:"totalViolationPoints"`
	TotalAwardPoints     int        `json:"totalAwardPoints"`
	InitialPoints        int        `json:"initialPoints"`
	NetPoints            int        `json:"netPoints"`
	ViolationCount       int        `json:"violationCount"`
	AwardCount           int        `json:"awardCount"`
	AnomalyCount         int        `json:"anomalyCount,omitempty"`
}

// ClassTotals sums a class summary.
type ClassTotals struct {
	StudentCount         int `json:"studentCount"`
	TotalViolationPoints int `json:"totalViolationPoints"`
	TotalAwardPoints     int `json:"totalAwardPoints"`
	NetPoints            int `json:"netPoints"`
	ViolationCount       int `json:"violationCount"`
	AwardCount           int `json:"awardCount"`
}

// ClassAverages holds per-student means.
type ClassAverages struct {
	TotalViolationPoints float64 `json:"totalViolationPoints"`
	TotalAwardPoints     float64 `json:"totalAwardPoints"`
	NetPoints            float64 `json:"netPoints"`
	ViolationCount       float64 `json:"violationCount"`
	AwardCount           float64 `json:"awardCount"`
}

// ClassSummaryResponse is the /violation-summary/class payload.
type ClassSummaryResponse struct {
	Class      ClassRef          `json:"class"`
	SchoolYear SchoolYearRef     `json:"schoolYear"`
	Semester   int               `json:"semester"`
	DateRange  DateRange         `json:"dateRange"`
	Students   []ClassStudentRow `json:"students"`
	Totals     ClassTotals       `json:"totals"`
	Averages   ClassAverages     `json:"averages"`
}

// NewSemesterLedgerResponse maps a derived ledger to its JSON shape.
func NewSemesterLedgerResponse(l *models.SemesterLedger) SemesterLedgerResponse {
	resp := SemesterLedgerResponse{
		Student:          studentRef(l.Student),
		Semester:         int(l.Semester),
		SchoolYear:       schoolYearRef(l.SchoolYear),
		StartDate:        formatDate(l.StartDate),
		EndDate:          formatDate(l.EndDate),
		TotalPoints:      l.TotalViolationPoints,
		TotalAwardPoints: l.TotalAwardPoints,
		InitialPoints:    l.InitialPoints,
		NetPoints:        l.NetPoints,
		ViolationCount:   l.ViolationCount,
		AwardCount:       l.AwardCount,
		Violations:       make([]LedgerEvent, 0, len(l.Violations)),
		Awards:           make([]LedgerEvent, 0, len(l.Awards)),
		Anomalies:        make([]LedgerAnomaly, 0, len(l.Anomalies)),
	}
	if l.Reset != nil {
		msg := l.Reset.Message
		next := l.Reset.NextSemesterPoints
		resp.PointStatus = string(l.Reset.Status)
		resp.ResetMessage = &msg
		resp.NextSemesterPoints = &next
	}
	for _, v := range l.Violations {
		resp.Violations = append(resp.Violations, LedgerEvent{
			ID:             v.ID,
			RegulationID:   v.RegulationID,
			RegulationName: v.RegulationName,
			Category:       v.RegulationCategory,
			ActionTaken:    v.ActionTaken,
			Points:         v.Points,
			Description:    v.Description,
			OccurredAt:     v.OccurredAt,
		})
	}
	for _, a := range l.Awards {
		resp.Awards = append(resp.Awards, LedgerEvent{
			ID:             a.ID,
			RegulationID:   a.RegulationID,
			RegulationName: a.RegulationName,
			Category:       a.RegulationCategory,
			Points:         a.Points,
			Description:    a.Description,
			OccurredAt:     a.OccurredAt,
			Status:         a.Status,
		})
	}
	for _, an := range l.Anomalies {
		resp.Anomalies = append(resp.Anomalies, LedgerAnomaly{
			EventID:   an.EventID,
			EventKind: an.EventKind,
			Reason:    an.Reason,
			Detail:    an.Detail,
		})
	}
	return resp
}

// NewYearlySummaryResponse maps a yearly summary to its JSON shape.
func NewYearlySummaryResponse(y *models.YearlySummary) YearlySummaryResponse {
	return YearlySummaryResponse{
		Student:      studentRef(y.Student),
		SchoolYear:   schoolYearRef(y.SchoolYear),
		Semester1:    NewSemesterLedgerResponse(&y.Semester1),
		Semester2:    NewSemesterLedgerResponse(&y.Semester2),
		YearEndTotal: y.YearEndTotal,
	}
}

// NewClassSummaryResponse maps a class summary to its JSON shape.
func NewClassSummaryResponse(s *models.ClassSummary) ClassSummaryResponse {
	resp := ClassSummaryResponse{
		Class: ClassRef{
			ID:                  s.Class.ID,
			Name:                s.Class.Name,
			Grade:               s.Class.Grade,
			HomeroomTeacherName: s.Class.HomeroomTeacherName,
		},
		SchoolYear: schoolYearRef(s.SchoolYear),
		Semester:   int(s.Semester),
		DateRange:  DateRange{Start: formatDate(s.StartDate), End: formatDate(s.EndDate)},
		Students:   make([]ClassStudentRow, 0, len(s.Students)),
		Totals:     ClassTotals(s.Totals),
		Averages:   ClassAverages(s.Averages),
	}
	for _, row := range s.Students {
		resp.Students = append(resp.Students, ClassStudentRow{
			Student:              studentRef(row.Student),
			TotalViolationPoints: row.TotalViolationPoints,
			TotalAwardPoints:     row.TotalAwardPoints,
			InitialPoints:        row.InitialPoints,
			NetPoints:            row.NetPoints,
			ViolationCount:       row.ViolationCount,
			AwardCount:           row.AwardCount,
			AnomalyCount:         row.AnomalyCount,
		})
	}
	return resp
}

func studentRef(s models.Student) StudentRef {
	return StudentRef{ID: s.ID, NIS: s.NIS, FullName: s.FullName}
}

func schoolYearRef(y models.SchoolYear) SchoolYearRef {
	return SchoolYearRef{Year: y.Year, Name: y.Name}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
