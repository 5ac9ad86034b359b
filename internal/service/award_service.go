package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type awardRepository interface {
	List(ctx context.Context, filter models.AwardFilter) ([]models.AwardDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AwardDetail, error)
	Create(ctx context.Context, award *models.Award) error
	Decide(ctx context.Context, id string, status models.AwardStatus, approverID string, note *string, decidedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// AwardService runs the propose, approve and reject workflow for awards.
type AwardService struct {
	repo        awardRepository
	students    eventStudentReader
	regulations eventRegulationReader
	years       eventSchoolYearReader
	ledgers     ledgerInvalidator
	audit       auditRecorder
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAwardService constructs the service. ledgers and audit may be nil.
func NewAwardService(repo awardRepository, students eventStudentReader, regulations eventRegulationReader, years eventSchoolYearReader, ledgers ledgerInvalidator, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *AwardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AwardService{
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

// AwardListRequest describes filters for listing awards.
type AwardListRequest struct {
	StudentID  string `form:"student_id"`
	SchoolYear string `form:"year"`
	Semester   int    `form:"semester"`
	Status     string `form:"status"`
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
}

// ProposeAwardRequest is the payload for proposing an award.
type ProposeAwardRequest struct {
	StudentID    string     `json:"student_id" validate:"required"`
	RegulationID string     `json:"regulation_id" validate:"required"`
	Description  string     `json:"description" validate:"max=1000"`
	OccurredAt   *time.Time `json:"occurred_at"`
	SchoolYear   string     `json:"school_year"`
	Semester     int        `json:"semester" validate:"omitempty,oneof=1 2"`
}

// AwardDecisionRequest carries an optional note for approve and reject.
type AwardDecisionRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// List returns awards with pagination.
func (s *AwardService) List(ctx context.Context, req AwardListRequest) ([]models.AwardDetail, *models.Pagination, error) {
	filter := models.AwardFilter{
		StudentID:  req.StudentID,
		SchoolYear: req.SchoolYear,
		Semester:   models.Semester(req.Semester),
		Status:     models.AwardStatus(req.Status),
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if err := validateEventFilter(filter.SchoolYear, filter.Semester); err != nil {
		return nil, nil, err
	}
	switch filter.Status {
	case "", models.AwardStatusProposed, models.AwardStatusApproved, models.AwardStatusRejected:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be proposed, approved or rejected")
	}
	filter.Page, filter.PageSize = pageDefaults(filter.Page, filter.PageSize)
	awards, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list awards")
	}
	return awards, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single award.
func (s *AwardService) Get(ctx context.Context, id string) (*models.AwardDetail, error) {
	award, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "award not found", "failed to load award")
	}
	return award, nil
}

// Propose records an award in proposed state. It does not count until approved.
func (s *AwardService) Propose(ctx context.Context, req ProposeAwardRequest, actor *models.JWTClaims) (*models.AwardDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid award payload")
	}
	if err := requireStudent(ctx, s.students, req.StudentID); err != nil {
		return nil, err
	}
	regulation, err := requireRegulation(ctx, s.regulations, req.RegulationID, models.RegulationTypeAward)
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

	award := models.Award{
		StudentID:    req.StudentID,
		RegulationID: regulation.ID,
		Points:       regulation.Point,
		Description:  req.Description,
		Status:       models.AwardStatusProposed,
		OccurredAt:   occurredAt,
		SchoolYear:   placement.SchoolYear,
		Semester:     placement.Semester,
	}
	if actor != nil {
		award.ProposedBy = actor.UserID
	}
	if err := s.repo.Create(ctx, &award); err != nil {
		return nil, appErrors.Internal(err, "failed to create award")
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionCreate, models.AuditResourceAward, award.ID, nil, award)
	return &models.AwardDetail{
		Award:              award,
		RegulationName:     regulation.Name,
		RegulationCategory: regulation.Category,
		RegulationType:     regulation.Type,
		ActionTaken:        regulation.ActionTaken,
	}, nil
}

// Approve credits a proposed award to the student's ledger.
func (s *AwardService) Approve(ctx context.Context, id string, req AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error) {
	return s.decide(ctx, id, models.AwardStatusApproved, req, actor)
}

// Reject closes a proposed award without crediting it.
func (s *AwardService) Reject(ctx context.Context, id string, req AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error) {
	return s.decide(ctx, id, models.AwardStatusRejected, req, actor)
}

func (s *AwardService) decide(ctx context.Context, id string, status models.AwardStatus, req AwardDecisionRequest, actor *models.JWTClaims) (*models.AwardDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "approver identity required")
	}
	award, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if award.Status != models.AwardStatusProposed {
		return nil, appErrors.Clone(appErrors.ErrAwardDecided, "award is already "+string(award.Status))
	}

	decidedAt := s.now()
	note := strPtr(req.Note)
	if err := s.repo.Decide(ctx, id, status, actor.UserID, note, decidedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// lost the race against a concurrent decision
			return nil, appErrors.Clone(appErrors.ErrAwardDecided, "award was decided concurrently")
		}
		return nil, appErrors.Internal(err, "failed to decide award")
	}

	before := award.Award
	award.Status = status
	award.ApprovedBy = &actor.UserID
	award.DecisionNote = note
	award.DecidedAt = &decidedAt
	if status == models.AwardStatusApproved {
		s.invalidate(ctx, award.StudentID, award.SchoolYear)
	}
	action := models.AuditActionApprove
	if status == models.AwardStatusRejected {
		action = models.AuditActionReject
	}
	recordAudit(ctx, s.audit, s.logger, actor, action, models.AuditResourceAward, id, before, award.Award)
	return award, nil
}

// Delete removes an award of any status.
func (s *AwardService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete award")
	}
	if existing.Status == models.AwardStatusApproved {
		s.invalidate(ctx, existing.StudentID, existing.SchoolYear)
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDelete, models.AuditResourceAward, id, existing.Award, nil)
	return nil
}

func (s *AwardService) invalidate(ctx context.Context, studentID, year string) {
	if s.ledgers != nil {
		s.ledgers.InvalidateStudent(ctx, studentID, year)
	}
}
