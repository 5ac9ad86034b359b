package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ledgerInvalidator drops cached ledgers touched by an event write.
type ledgerInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID, year string)
}

type eventStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type eventRegulationReader interface {
	FindByID(ctx context.Context, id string) (*models.Regulation, error)
}

type eventSchoolYearReader interface {
	FindByYear(ctx context.Context, year string) (*models.SchoolYear, error)
	FindActive(ctx context.Context) (*models.SchoolYear, error)
}

// eventPlacement is the school year and semester an event is booked into.
type eventPlacement struct {
	SchoolYear string
	Semester   models.Semester
}

// placeEvent resolves the school year (the active one when year is empty) and
// the semester. Without an explicit semester it is derived from occurredAt.
func placeEvent(ctx context.Context, years eventSchoolYearReader, year string, semester int, occurredAt time.Time) (eventPlacement, error) {
	var (
		sy  *models.SchoolYear
		err error
	)
	if year == "" {
		sy, err = years.FindActive(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return eventPlacement{}, appErrors.Clone(appErrors.ErrValidation, "school_year is required while no school year is active")
		}
	} else {
		if !models.ValidSchoolYear(year) {
			return eventPlacement{}, appErrors.Clone(appErrors.ErrValidation, "school_year must be a four-digit year")
		}
		sy, err = years.FindByYear(ctx, year)
	}
	if err != nil {
		return eventPlacement{}, notFoundOrInternal(err, "school year not found", "failed to load school year")
	}

	if semester != 0 {
		s := models.Semester(semester)
		if !s.Valid() {
			return eventPlacement{}, appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
		}
		return eventPlacement{SchoolYear: sy.Year, Semester: s}, nil
	}
	s, ok := sy.SemesterOf(occurredAt)
	if !ok {
		return eventPlacement{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("occurred_at %s is outside both semesters of %s; pass semester explicitly", occurredAt.Format("2006-01-02"), sy.Year))
	}
	return eventPlacement{SchoolYear: sy.Year, Semester: s}, nil
}

// requireRegulation loads an active regulation of the wanted type.
func requireRegulation(ctx context.Context, regulations eventRegulationReader, id string, want models.RegulationType) (*models.Regulation, error) {
	regulation, err := regulations.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrInternal(err, "regulation not found", "failed to load regulation")
	}
	if regulation.Type != want {
		return nil, appErrors.Clone(appErrors.ErrRegulationMismatch,
			fmt.Sprintf("regulation %q is a %s rule, expected %s", regulation.Name, regulation.Type, want))
	}
	if !regulation.IsActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "regulation is inactive")
	}
	return regulation, nil
}

func requireStudent(ctx context.Context, students eventStudentReader, id string) error {
	if _, err := students.FindByID(ctx, id); err != nil {
		return notFoundOrInternal(err, "student not found", "failed to load student")
	}
	return nil
}

// recordAudit writes an audit row; failures are logged and never surface to the caller.
func recordAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, actor *models.JWTClaims, action, resource, resourceID string, before, after interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     action,
		Resource:   resource,
		ResourceID: strPtr(resourceID),
		OldValues:  marshalAudit(before),
		NewValues:  marshalAudit(after),
		IPAddress:  "system",
		UserAgent:  resource + "-service",
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("resource", resource), zap.String("action", action), zap.Error(err))
	}
}

func marshalAudit(value interface{}) []byte {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

type activeYearSetting interface {
	ActiveSchoolYear(ctx context.Context) (string, error)
}

// SchoolYearResolver picks the active school year from the active_school_year
// configuration entry and falls back to the year flagged active in storage.
type SchoolYearResolver struct {
	years    eventSchoolYearReader
	settings activeYearSetting
}

// NewSchoolYearResolver constructs a resolver. settings may be nil.
func NewSchoolYearResolver(years eventSchoolYearReader, settings activeYearSetting) *SchoolYearResolver {
	return &SchoolYearResolver{years: years, settings: settings}
}

// FindByYear delegates to the school year store.
func (r *SchoolYearResolver) FindByYear(ctx context.Context, year string) (*models.SchoolYear, error) {
	return r.years.FindByYear(ctx, year)
}

// FindActive returns the configured active year, or the stored active year when none is configured.
func (r *SchoolYearResolver) FindActive(ctx context.Context) (*models.SchoolYear, error) {
	if r.settings != nil {
		year, err := r.settings.ActiveSchoolYear(ctx)
		switch {
		case err == nil:
			return r.years.FindByYear(ctx, year)
		case !errors.Is(err, appErrors.ErrNotFound):
			return nil, err
		}
	}
	return r.years.FindActive(ctx)
}
