package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type regulationRepository interface {
	List(ctx context.Context, filter models.RegulationFilter) ([]models.Regulation, int, error)
	FindByID(ctx context.Context, id string) (*models.Regulation, error)
	Create(ctx context.Context, regulation *models.Regulation) error
	Update(ctx context.Context, regulation *models.Regulation) error
	Deactivate(ctx context.Context, id string) error
}

// RegulationService manages the violation and award rule catalog.
type RegulationService struct {
	repo      regulationRepository
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRegulationService constructs the service. audit may be nil.
func NewRegulationService(repo regulationRepository, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *RegulationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RegulationService{repo: repo, audit: audit, validator: validate, logger: logger}
	svc.validator.RegisterValidation("regulation_type", func(fl validator.FieldLevel) bool {
		return models.RegulationType(fl.Field().String()).Valid()
	})
	return svc
}

// RegulationListRequest describes filters for listing regulations.
type RegulationListRequest struct {
	Type     string `form:"type"`
	Category string `form:"category"`
	Active   *bool  `form:"active"`
	Search   string `form:"search"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// RegulationRequest is the create and update payload.
type RegulationRequest struct {
	Name        string `json:"name" validate:"required,max=150"`
	Category    string `json:"category" validate:"required,max=100"`
	Type        string `json:"type" validate:"required,regulation_type"`
	Point       int    `json:"point" validate:"gt=0,lte=1000"`
	ActionTaken string `json:"action_taken" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

// List returns regulations with pagination.
func (s *RegulationService) List(ctx context.Context, req RegulationListRequest) ([]models.Regulation, *models.Pagination, error) {
	filter := models.RegulationFilter{
		Type:     models.RegulationType(req.Type),
		Category: req.Category,
		Active:   req.Active,
		Search:   req.Search,
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "type must be violation or award")
	}
	filter.Page, filter.PageSize = pageDefaults(filter.Page, filter.PageSize)
	regulations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list regulations")
	}
	return regulations, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single regulation.
func (s *RegulationService) Get(ctx context.Context, id string) (*models.Regulation, error) {
	regulation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "regulation not found", "failed to load regulation")
	}
	return regulation, nil
}

// Create adds a regulation. New regulations are active unless stated otherwise.
func (s *RegulationService) Create(ctx context.Context, req RegulationRequest, actor *models.JWTClaims) (*models.Regulation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regulation payload")
	}
	regulation := &models.Regulation{
		Name:        req.Name,
		Category:    req.Category,
		Type:        models.RegulationType(req.Type),
		Point:       req.Point,
		ActionTaken: req.ActionTaken,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := s.repo.Create(ctx, regulation); err != nil {
		return nil, appErrors.Internal(err, "failed to create regulation")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.AuditResourceRegulation, regulation.ID, nil, regulation)
	return regulation, nil
}

// Update edits a regulation. Events already recorded keep the points they
// captured; the type is fixed because existing events are checked against it.
func (s *RegulationService) Update(ctx context.Context, id string, req RegulationRequest, actor *models.JWTClaims) (*models.Regulation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid regulation payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if models.RegulationType(req.Type) != existing.Type {
		return nil, appErrors.Clone(appErrors.ErrRegulationMismatch, "regulation type cannot be changed")
	}
	before := *existing
	updated := *existing
	updated.Name = req.Name
	updated.Category = req.Category
	updated.Point = req.Point
	updated.ActionTaken = req.ActionTaken
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Internal(err, "failed to update regulation")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.AuditResourceRegulation, id, before, updated)
	return &updated, nil
}

// Deactivate hides a regulation from new events without touching history.
func (s *RegulationService) Deactivate(ctx context.Context, id string, actor *models.JWTClaims) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !existing.IsActive {
		return nil
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to deactivate regulation")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.AuditResourceRegulation, id, existing, nil)
	return nil
}
