package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type violationRepository interface {
	List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ViolationDetail, error)
	Create(ctx context.Context, violation *models.Violation) error
	Update(ctx context.Context, violation *models.Violation) error
	Delete(ctx context.Context, id string) error
}

// ViolationService records violation events. Points are copied from the
// regulation when the event is created.
type ViolationService struct {
	repo        violationRepository
	students    eventStudentReader
	regulations eventRegulationReader
	years       eventSchoolYearReader
	ledgers     ledgerInvalidator
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewViolationService constructs the service. ledgers and audit may be nil.
func NewViolationService(repo violationRepository, students eventStudentReader, regulations eventRegulationReader, years eventSchoolYearReader, ledgers ledgerInvalidator, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ViolationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViolationService{
		repo:        repo,
		students:    students,
		regulations: regulations,
		years:       years,
		ledgers:     ledgers,
		audit:       audit,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ViolationListRequest describes filters for listing violations.
type ViolationListRequest struct {
	StudentID  string `form:"student_id"`
	SchoolYear string `form:"year"`
	Semester   int    `form:"semester"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// CreateViolationRequest is the payload for recording a violation. SchoolYear
// defaults to the active year and Semester to the one containing OccurredAt.
type CreateViolationRequest struct {
	StudentID    string     `json:"student_id" validate:"required"`
	RegulationID string     `json:"regulation_id" validate:"required"`
	Description  string     `json:"description" validate:"max=1000"`
	OccurredAt   *time.Time `json:"occurred_at"`
	SchoolYear   string     `json:"school_year"`
	Semester     int        `json:"semester" validate:"omitempty,oneof=1 2"`
}

// UpdateViolationRequest edits a violation; empty fields keep their value.
type UpdateViolationRequest struct {
	RegulationID string     `json:"regulation_id"`
	Description  *string    `json:"description" validate:"omitempty,max=1000"`
	OccurredAt   *time.Time `json:"occurred_at"`
	SchoolYear   string     `json:"school_year"`
	Semester     int        `json:"semester" validate:"omitempty,oneof=1 2"`
}

// List returns violations with pagination.
func (s *ViolationService) List(ctx context.Context, req ViolationListRequest) ([]models.ViolationDetail, *models.Pagination, error) {
	filter := models.ViolationFilter{
		StudentID:  req.StudentID,
		SchoolYear: req.SchoolYear,
		Semester:   models.Semester(req.Semester),
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if err := validateEventFilter(filter.SchoolYear, filter.Semester); err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = pageDefaults(filter.Page, filter.PageSize)
	violations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list violations")
	}
	return violations, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single violation.
func (s *ViolationService) Get(ctx context.Context, id string) (*models.ViolationDetail, error) {
	violation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "violation not found", "failed to load violation")
	}
	return violation, nil
}

// Create records a violation against an active violation regulation.
func (s *ViolationService) Create(ctx context.Context, req CreateViolationRequest, actor *models.JWTClaims) (*models.ViolationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}
	if err := requireStudent(ctx, s.students, req.StudentID); err != nil {
		return nil, err
	}
	regulation, err := requireRegulation(ctx, s.regulations, req.RegulationID, models.RegulationTypeViolation)
	if err != nil {
		return nil, err
	}
	occurredAt := s.now()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}
	placement, err := placeEvent(ctx, s.years, req.SchoolYear, req.Semester, occurredAt)
	if err != nil {
		return nil, err
	}

	violation := models.Violation{
		StudentID:    req.StudentID,
		RegulationID: regulation.ID,
		Points:       regulation.Point,
		Description:  req.Description,
		OccurredAt:   occurredAt,
		SchoolYear:   placement.SchoolYear,
		Semester:     placement.Semester,
	}
	if actor != nil {
		violation.RecordedBy = actor.UserID
	}
	if err := s.repo.Create(ctx, &violation); err != nil {
		return nil, appErrors.Internal(err, "failed to create violation")
	}
	s.invalidate(ctx, violation.StudentID, violation.SchoolYear)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.AuditResourceViolation, violation.ID, nil, violation)
	return withRegulation(violation, regulation), nil
}

// Update edits a violation. Points are only re-copied when the regulation changes.
func (s *ViolationService) Update(ctx context.Context, id string, req UpdateViolationRequest, actor *models.JWTClaims) (*models.ViolationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid violation payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := existing.Violation
	updated := existing.Violation
	regulation := &models.Regulation{
		ID:          existing.RegulationID,
		Name:        existing.RegulationName,
		Category:    existing.RegulationCategory,
		Type:        existing.RegulationType,
		ActionTaken: existing.ActionTaken,
	}

	if req.RegulationID != "" && req.RegulationID != existing.RegulationID {
		regulation, err = requireRegulation(ctx, s.regulations, req.RegulationID, models.RegulationTypeViolation)
		if err != nil {
			return nil, err
		}
		updated.RegulationID = regulation.ID
		updated.Points = regulation.Point
	}
	if req.Description != nil {
		updated.Description = *req.Description
	}
	if req.OccurredAt != nil || req.SchoolYear != "" || req.Semester != 0 {
		if req.OccurredAt != nil {
			updated.OccurredAt = req.OccurredAt.UTC()
		}
		year := req.SchoolYear
		if year == "" {
			year = existing.SchoolYear
		}
		placement, err := placeEvent(ctx, s.years, year, req.Semester, updated.OccurredAt)
		if err != nil {
			return nil, err
		}
		updated.SchoolYear = placement.SchoolYear
		updated.Semester = placement.Semester
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, appErrors.Internal(err, "failed to update violation")
	}
	s.invalidate(ctx, before.StudentID, before.SchoolYear)
	if updated.SchoolYear != before.SchoolYear {
		s.invalidate(ctx, updated.StudentID, updated.SchoolYear)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionUpdate, models.AuditResourceViolation, id, before, updated)
	return withRegulation(updated, regulation), nil
}

// Delete removes a violation.
func (s *ViolationService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete violation")
	}
	s.invalidate(ctx, existing.StudentID, existing.SchoolYear)
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.AuditResourceViolation, id, existing.Violation, nil)
	return nil
}

func (s *ViolationService) invalidate(ctx context.Context, studentID, year string) {
	if s.ledgers != nil {
		s.ledgers.InvalidateStudent(ctx, studentID, year)
	}
}

func withRegulation(v models.Violation, regulation *models.Regulation) *models.ViolationDetail {
	return &models.ViolationDetail{
		Violation:          v,
		RegulationName:     regulation.Name,
		RegulationCategory: regulation.Category,
		RegulationType:     regulation.Type,
		ActionTaken:        regulation.ActionTaken,
	}
}

func validateEventFilter(year string, semester models.Semester) error {
	if year != "" && !models.ValidSchoolYear(year) {
		return appErrors.Clone(appErrors.ErrValidation, "year must be a four-digit year")
	}
	if semester != 0 && !semester.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	return nil
}

func pageDefaults(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
