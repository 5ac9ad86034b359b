package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/dto"
	"github.com/noah-isme/sma-discipline-api/internal/middleware"
	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type ledgerReader interface {
	ComputeSemesterLedger(ctx context.Context, studentID, year string, semester int) (*models.SemesterLedger, error)
	ComputeYearlySummary(ctx context.Context, studentID, year string) (*models.YearlySummary, error)
	ComputeClassSummary(ctx context.Context, classID, year string, semester int) (*models.ClassSummary, error)
}

// ViolationSummaryHandler serves derived point ledgers.
type ViolationSummaryHandler struct {
	ledgers ledgerReader
}

// NewViolationSummaryHandler constructs the handler.
func NewViolationSummaryHandler(ledgers ledgerReader) *ViolationSummaryHandler {
	return &ViolationSummaryHandler{ledgers: ledgers}
}

// Semester godoc
// @Summary Semester point ledger of a student
// @Tags ViolationSummary
// @Produce json
// @Param student_id query string true "Student ID"
// @Param year query string true "School year, e.g. 2024"
// @Param semester query int true "Semester (1 or 2)"
// @Success 200 {object} response.Envelope{data=dto.SemesterLedgerResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /violation-summary/semester [get]
func (h *ViolationSummaryHandler) Semester(c *gin.Context) {
	studentID, err := requiredQuery(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	semester, err := semesterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ledger, err := h.ledgers.ComputeSemesterLedger(c.Request.Context(), studentID, c.Query("year"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewSemesterLedgerResponse(ledger), nil, middleware.ResponseMeta(c))
}

// Yearly godoc
// @Summary Yearly point summary of a student
// @Tags ViolationSummary
// @Produce json
// @Param student_id query string true "Student ID"
// @Param year query string true "School year, e.g. 2024"
// @Success 200 {object} response.Envelope{data=dto.YearlySummaryResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /violation-summary/yearly [get]
func (h *ViolationSummaryHandler) Yearly(c *gin.Context) {
	studentID, err := requiredQuery(c, "student_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.ledgers.ComputeYearlySummary(c.Request.Context(), studentID, c.Query("year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewYearlySummaryResponse(summary), nil, middleware.ResponseMeta(c))
}

// Class godoc
// @Summary Class summary for one semester
// @Tags ViolationSummary
// @Produce json
// @Param class_id query string true "Class ID"
// @Param year query string true "School year, e.g. 2024"
// @Param semester query int true "Semester (1 or 2)"
// @Success 200 {object} response.Envelope{data=dto.ClassSummaryResponse}
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /violation-summary/class [get]
func (h *ViolationSummaryHandler) Class(c *gin.Context) {
	classID, err := requiredQuery(c, "class_id")
	if err != nil {
		response.Error(c, err)
		return
	}
	semester, err := semesterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.ledgers.ComputeClassSummary(c.Request.Context(), classID, c.Query("year"), semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewClassSummaryResponse(summary), nil, middleware.ResponseMeta(c))
}
