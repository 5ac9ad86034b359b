package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/internal/service"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

type awardService interface {
	List(ctx context.Context, req service.AwardListRequest) ([]models.AwardDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AwardDetail, error)
	Propose(ctx context.Context, req service.ProposeAwardRequest, actor *models.JWTClaims) (*models.AwardDetail, error)
	Approve(ctx context.Context, id string, req service.AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error)
	Reject(ctx context.Context, id string, req service.AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// AwardHandler exposes the award proposal workflow.
type AwardHandler struct {
	awards awardService
}

// NewAwardHandler constructs AwardHandler.
func NewAwardHandler(awards awardService) *AwardHandler {
	return &AwardHandler{awards: awards}
}

// List godoc
// @Summary List awards
// @Tags Awards
// @Produce json
// @Param student_id query string false "Student ID"
// @Param year query string false "School year"
// @Param semester query int false "Semester"
// @Param status query string false "proposed, approved or rejected"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /awards [get]
func (h *AwardHandler) List(c *gin.Context) {
	var req service.AwardListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	items, pagination, err := h.awards.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get award
// @Tags Awards
// @Produce json
// @Param id path string true "Award ID"
// @Success 200 {object} response.Envelope
// @Router /awards/{id} [get]
func (h *AwardHandler) Get(c *gin.Context) {
	item, err := h.awards.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Propose godoc
// @Summary Propose award
// @Description Creates a proposed award. It is not credited until approved.
// @Tags Awards
// @Accept json
// @Produce json
// @Param payload body service.ProposeAwardRequest true "Award payload"
// @Success 201 {object} response.Envelope
// @Router /awards [post]
func (h *AwardHandler) Propose(c *gin.Context) {
	var req service.ProposeAwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := h.awards.Propose(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Approve godoc
// @Summary Approve award
// @Tags Awards
// @Accept json
// @Produce json
// @Param id path string true "Award ID"
// @Param payload body service.AwardDecisionRequest false "Decision note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /awards/{id}/approve [post]
func (h *AwardHandler) Approve(c *gin.Context) {
	h.decide(c, h.awards.Approve)
}

// Reject godoc
// @Summary Reject award
// @Tags Awards
// @Accept json
// @Produce json
// @Param id path string true "Award ID"
// @Param payload body service.AwardDecisionRequest false "Decision note"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /awards/{id}/reject [post]
func (h *AwardHandler) Reject(c *gin.Context) {
	h.decide(c, h.awards.Reject)
}

type awardDecision func(ctx context.Context, id string, req service.AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error)

func (h *AwardHandler) decide(c *gin.Context, decide awardDecision) {
	var req service.AwardDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	item, err := decide(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Delete godoc
// @Summary Delete award
// @Tags Awards
// @Param id path string true "Award ID"
// @Success 204
// @Router /awards/{id} [delete]
func (h *AwardHandler) Delete(c *gin.Context) {
	if err := h.awards.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
