package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/internal/service"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type regulationService interface {
	List(ctx context.Context, req service.RegulationListRequest) ([]models.Regulation, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Regulation, error)
	Create(ctx context.Context, req service.RegulationRequest, actor *models.JWTClaims) (*models.Regulation, error)
	Update(ctx context.Context, id string, req service.RegulationRequest, actor *models.JWTClaims) (*models.Regulation, error)
	Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error
}

// RegulationHandler exposes the regulation catalogue.
type RegulationHandler struct {
	regulations regulationService
}

// NewRegulationHandler constructs RegulationHandler.
func NewRegulationHandler(regulations regulationService) *RegulationHandler {
	return &RegulationHandler{regulations: regulations}
}

// List godoc
// @Summary List regulations
// @Tags Regulations
// @Produce json
// @Param type query string false "violation or award"
// @Param category query string false "Category"
// @Param active query bool false "Filter by active state"
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /regulations [get]
func (h *RegulationHandler) List(c *gin.Context) {
	var req service.RegulationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.regulations.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get regulation
// @Tags Regulations
// @Produce json
// @Param id path string true "Regulation ID"
// @Success 200 {object} response.Envelope
// @Router /regulations/{id} [get]
func (h *RegulationHandler) Get(c *gin.Context) {
	item, err := h.regulations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Create godoc
// @Summary Create regulation
// @Tags Regulations
// @Accept json
// @Produce json
// @Param payload body service.RegulationRequest true "Regulation payload"
// @Success 201 {object} response.Envelope
// @Router /regulations [post]
func (h *RegulationHandler) Create(c *gin.Context) {
	var req service.RegulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := h.regulations.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update regulation
// @Description Points changes apply to future events only. The type cannot change.
// @Tags Regulations
// @Accept json
// @Produce json
// @Param id path string true "Regulation ID"
// @Param payload body service.RegulationRequest true "Regulation payload"
// @Success 200 {object} response.Envelope
// @Router /regulations/{id} [put]
func (h *RegulationHandler) Update(c *gin.Context) {
	var req service.RegulationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := h.regulations.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Deactivate godoc
// @Summary Deactivate regulation
// @Tags Regulations
// @Param id path string true "Regulation ID"
// @Success 204
// @Router /regulations/{id} [delete]
func (h *RegulationHandler) Deactivate(c *gin.Context) {
	if err := h.regulations.Deactivate(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
