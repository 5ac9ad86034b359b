package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/internal/service"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type violationService interface {
	List(ctx context.Context, req service.ViolationListRequest) ([]models.ViolationDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.ViolationDetail, error)
	Create(ctx context.Context, req service.CreateViolationRequest, actor *models.JWTClaims) (*models.ViolationDetail, error)
	Update(ctx context.Context, id string, req service.UpdateViolationRequest, actor *models.JWTClaims) (*models.ViolationDetail, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// ViolationHandler exposes violation events.
type ViolationHandler struct {
	violations violationService
}

// NewViolationHandler constructs ViolationHandler.
func NewViolationHandler(violations violationService) *ViolationHandler {
	return &ViolationHandler{violations: violations}
}

// List godoc
// @Summary List violations
// @Tags Violations
// @Produce json
// @Param student_id query string false "Student ID"
// @Param year query string false "School year"
// @Param semester query int false "Semester"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /violations [get]
func (h *ViolationHandler) List(c *gin.Context) {
	var req service.ViolationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.violations.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get violation
// @Tags Violations
// @Produce json
// @Param id path string true "Violation ID"
// @Success 200 {object} response.Envelope
// @Router /violations/{id} [get]
func (h *ViolationHandler) Get(c *gin.Context) {
	item, err := h.violations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Record violation
// @Description Points are copied from the regulation. Semester defaults to the one containing occurred_at.
// @Tags Violations
// @Accept json
// @Produce json
// @Param payload body service.CreateViolationRequest true "Violation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /violations [post]
func (h *ViolationHandler) Create(c *gin.Context) {
	var req service.CreateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := h.violations.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update violation
// @Tags Violations
// @Accept json
// @Produce json
// @Param id path string true "Violation ID"
// @Param payload body service.UpdateViolationRequest true "Violation payload"
// @Success 200 {object} response.Envelope
// @Router /violations/{id} [put]
func (h *ViolationHandler) Update(c *gin.Context) {
	var req service.UpdateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := h.violations.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete violation
// @Tags Violations
// @Param id path string true "Violation ID"
// @Success 204
// @Router /violations/{id} [delete]
func (h *ViolationHandler) Delete(c *gin.Context) {
	if err := h.violations.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
