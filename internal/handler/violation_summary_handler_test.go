package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type ledgerReaderStub struct {
	semester *models.SemesterLedger
	yearly   *models.YearlySummary
	class    *models.ClassSummary
	err      error

	gotID       string
	gotYear     string
	gotSemester int
}

func (s *ledgerReaderStub) ComputeSemesterLedger(ctx context.Context, studentID, year string, semester int) (*models.SemesterLedger, error) {
	s.gotID, s.gotYear, s.gotSemester = studentID, year, semester
	return s.semester, s.err
}

func (s *ledgerReaderStub) ComputeYearlySummary(ctx context.Context, studentID, year string) (*models.YearlySummary, error) {
	s.gotID, s.gotYear = studentID, year
	return s.yearly, s.err
}

func (s *ledgerReaderStub) ComputeClassSummary(ctx context.Context, classID, year string, semester int) (*models.ClassSummary, error) {
	s.gotID, s.gotYear, s.gotSemester = classID, year, semester
	return s.class, s.err
}

func sampleSemesterOne() models.SemesterLedger {
	start := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)
	return models.SemesterLedger{
		Student:              models.Student{ID: "s1", NIS: "1001", FullName: "Siti"},
		SchoolYear:           models.SchoolYear{Year: "2024", Name: "2024/2025"},
		Semester:             models.SemesterOdd,
		StartDate:            start,
		EndDate:              time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		TotalViolationPoints: 60,
		TotalAwardPoints:     10,
		NetPoints:            50,
		ViolationCount:       3,
		AwardCount:           1,
		Violations: []models.ViolationDetail{
			{Violation: models.Violation{ID: "v1", RegulationID: "r1", Points: 20, OccurredAt: start}, RegulationName: "Late"},
		},
		Reset: &models.ResetOutcome{Status: models.PointStatusReset, NextSemesterPoints: 0, Message: "Points reset"},
	}
}

func decodeData(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Data
}

func TestViolationSummarySemester(t *testing.T) {
	ledger := sampleSemesterOne()
	stub := &ledgerReaderStub{semester: &ledger}
	h := NewViolationSummaryHandler(stub)

	c, w := newGinContext(http.MethodGet, "/violation-summary/semester?student_id=s1&year=2024&semester=1", nil)
	h.Semester(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", stub.gotID)
	assert.Equal(t, "2024", stub.gotYear)
	assert.Equal(t, 1, stub.gotSemester)

	data := decodeData(t, w.Body.Bytes())
	assert.EqualValues(t, 60, data["totalPoints"])
	assert.EqualValues(t, 10, data["totalAwardPoints"])
	assert.EqualValues(t, 50, data["netPoints"])
	assert.EqualValues(t, 0, data["nextSemesterPoints"])
	assert.Equal(t, "Points reset", data["resetMessage"])
	assert.Equal(t, "2024-07-15", data["startDate"])
	assert.Len(t, data["violations"], 1)
	assert.NotNil(t, data["awards"])
	assert.NotNil(t, data["anomalies"])
}

func TestViolationSummarySemesterTwoOmitsReset(t *testing.T) {
	ledger := sampleSemesterOne()
	ledger.Semester = models.SemesterEven
	ledger.Reset = nil
	h := NewViolationSummaryHandler(&ledgerReaderStub{semester: &ledger})

	c, w := newGinContext(http.MethodGet, "/violation-summary/semester?student_id=s1&year=2024&semester=2", nil)
	h.Semester(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.NotContains(t, data, "resetMessage")
	assert.NotContains(t, data, "nextSemesterPoints")
}

func TestViolationSummarySemesterValidation(t *testing.T) {
	h := NewViolationSummaryHandler(&ledgerReaderStub{})
	for _, path := range []string{
		"/violation-summary/semester?year=2024&semester=1",
		"/violation-summary/semester?student_id=s1&year=2024",
		"/violation-summary/semester?student_id=s1&year=2024&semester=one",
	} {
		c, w := newGinContext(http.MethodGet, path, nil)
		h.Semester(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestViolationSummarySemesterNotFound(t *testing.T) {
	h := NewViolationSummaryHandler(&ledgerReaderStub{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")})
	c, w := newGinContext(http.MethodGet, "/violation-summary/semester?student_id=x&year=2024&semester=1", nil)
	h.Semester(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViolationSummaryYearly(t *testing.T) {
	first := sampleSemesterOne()
	second := models.SemesterLedger{Semester: models.SemesterEven, TotalViolationPoints: 30, NetPoints: 30}
	stub := &ledgerReaderStub{yearly: &models.YearlySummary{
		Student:      first.Student,
		SchoolYear:   first.SchoolYear,
		Semester1:    first,
		Semester2:    second,
		YearEndTotal: 30,
	}}
	h := NewViolationSummaryHandler(stub)

	c, w := newGinContext(http.MethodGet, "/violation-summary/yearly?student_id=s1&year=2024", nil)
	h.Yearly(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w.Body.Bytes())
	assert.EqualValues(t, 30, data["yearEndTotal"])
	semester1 := data["semester1"].(map[string]interface{})
	assert.Equal(t, "RESET", semester1["pointStatus"])
	assert.Equal(t, "2024-12-20", semester1["endDate"])
	semester2 := data["semester2"].(map[string]interface{})
	assert.EqualValues(t, 0, semester2["initialPoints"])
}

func TestViolationSummaryClass(t *testing.T) {
	stub := &ledgerReaderStub{class: &models.ClassSummary{
		Class:      models.ClassDetail{Class: models.Class{ID: "c1", Name: "XI IPA 1"}},
		SchoolYear: models.SchoolYear{Year: "2024"},
		Semester:   models.SemesterOdd,
		StartDate:  time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		Students: []models.ClassStudentSummary{
			{Student: models.Student{ID: "s1", FullName: "Siti"}, TotalViolationPoints: 60, TotalAwardPoints: 10, NetPoints: 50, ViolationCount: 3, AwardCount: 1},
		},
		Totals:   models.ClassTotals{StudentCount: 1, TotalViolationPoints: 60, TotalAwardPoints: 10, NetPoints: 50, ViolationCount: 3, AwardCount: 1},
		Averages: models.ClassAverages{TotalViolationPoints: 60, TotalAwardPoints: 10, NetPoints: 50, ViolationCount: 3, AwardCount: 1},
	}}
	h := NewViolationSummaryHandler(stub)

	c, w := newGinContext(http.MethodGet, "/violation-summary/class?class_id=c1&year=2024&semester=1", nil)
	h.Class(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", stub.gotID)
	data := decodeData(t, w.Body.Bytes())
	dateRange := data["dateRange"].(map[string]interface{})
	assert.Equal(t, "2024-07-15", dateRange["start"])
	students := data["students"].([]interface{})
	require.Len(t, students, 1)
	row := students[0].(map[string]interface{})
	assert.EqualValues(t, 60, row["totalViolationPoints"])
	assert.EqualValues(t, 1, row["awardCount"])
	averages := data["averages"].(map[string]interface{})
	assert.EqualValues(t, 50, averages["netPoints"])
}

func TestViolationSummaryClassRequiresClassID(t *testing.T) {
	h := NewViolationSummaryHandler(&ledgerReaderStub{})
	c, w := newGinContext(http.MethodGet, "/violation-summary/class?year=2024&semester=1", nil)
	h.Class(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
