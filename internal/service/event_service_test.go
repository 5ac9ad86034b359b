package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type invalidationRecorder struct {
	keys []string
}

func (r *invalidationRecorder) InvalidateStudent(ctx context.Context, studentID, year string) {
	r.keys = append(r.keys, studentID+"/"+year)
}

type violationStoreStub struct {
	items map[string]models.ViolationDetail
	seq   int
}

func (v *violationStoreStub) List(ctx context.Context, filter models.ViolationFilter) ([]models.ViolationDetail, int, error) {
	return nil, 0, nil
}

func (v *violationStoreStub) FindByID(ctx context.Context, id string) (*models.ViolationDetail, error) {
	item, ok := v.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (v *violationStoreStub) Create(ctx context.Context, violation *models.Violation) error {
	v.seq++
	violation.ID = fmt.Sprintf("v-%d", v.seq)
	v.items[violation.ID] = models.ViolationDetail{Violation: *violation}
	return nil
}

func (v *violationStoreStub) Update(ctx context.Context, violation *models.Violation) error {
	item := v.items[violation.ID]
	item.Violation = *violation
	v.items[violation.ID] = item
	return nil
}

func (v *violationStoreStub) Delete(ctx context.Context, id string) error {
	delete(v.items, id)
	return nil
}

type awardStoreStub struct {
	items     map[string]models.AwardDetail
	decideErr error
}

func (a *awardStoreStub) List(ctx context.Context, filter models.AwardFilter) ([]models.AwardDetail, int, error) {
	return nil, 0, nil
}

func (a *awardStoreStub) FindByID(ctx context.Context, id string) (*models.AwardDetail, error) {
	item, ok := a.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &item, nil
}

func (a *awardStoreStub) Create(ctx context.Context, award *models.Award) error {
	award.ID = "a-new"
	a.items[award.ID] = models.AwardDetail{Award: *award}
	return nil
}

func (a *awardStoreStub) Decide(ctx context.Context, id string, status models.AwardStatus, approverID string, note *string, decidedAt time.Time) error {
	if a.decideErr != nil {
		return a.decideErr
	}
	item := a.items[id]
	item.Status = status
	item.ApprovedBy = &approverID
	a.items[id] = item
	return nil
}

func (a *awardStoreStub) Delete(ctx context.Context, id string) error {
	delete(a.items, id)
	return nil
}

func eventRegulations() *regulationStoreStub {
	return newRegulationStore(
		models.Regulation{ID: "reg-bolos", Name: "Membolos", Category: "kehadiran", Type: models.RegulationTypeViolation, Point: 20, IsActive: true},
		models.Regulation{ID: "reg-old", Name: "Aturan lama", Type: models.RegulationTypeViolation, Point: 5, IsActive: false},
		models.Regulation{ID: "reg-juara", Name: "Juara lomba", Category: "prestasi", Type: models.RegulationTypeAward, Point: 10, IsActive: true},
	)
}

func eventStudents() *stubLedgerStudents {
	return &stubLedgerStudents{students: map[string]models.Student{"s1": {ID: "s1", FullName: "Siti"}}}
}

func eventYears() *stubSchoolYears {
	return &stubSchoolYears{years: map[string]models.SchoolYear{"2024": testSchoolYear()}}
}

func newViolationFixture() (*ViolationService, *violationStoreStub, *invalidationRecorder, *auditLoggerStub) {
	store := &violationStoreStub{items: map[string]models.ViolationDetail{}}
	ledgers := &invalidationRecorder{}
	audit := &auditLoggerStub{}
	svc := NewViolationService(store, eventStudents(), eventRegulations(), eventYears(), ledgers, audit, validator.New(), nil)
	return svc, store, ledgers, audit
}

func TestViolationServiceCreateCopiesPointsAndPlacesEvent(t *testing.T) {
	svc, store, ledgers, audit := newViolationFixture()
	occurred := time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)

	v, err := svc.Create(context.Background(), CreateViolationRequest{
		StudentID: "s1", RegulationID: "reg-bolos", OccurredAt: &occurred,
	}, &models.JWTClaims{UserID: "teacher-1"})
	require.NoError(t, err)
	assert.Equal(t, 20, v.Points)
	assert.Equal(t, "2024", v.SchoolYear)
	assert.Equal(t, models.SemesterEven, v.Semester)
	assert.Equal(t, "teacher-1", v.RecordedBy)
	assert.Equal(t, "Membolos", v.RegulationName)
	assert.Contains(t, store.items, v.ID)
	assert.Equal(t, []string{"s1/2024"}, ledgers.keys)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditResourceViolation, audit.logs[0].Resource)
}

func TestViolationServiceCreateRejections(t *testing.T) {
	svc, _, ledgers, _ := newViolationFixture()
	inSemester := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	holiday := time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  CreateViolationRequest
		code string
	}{
		{"unknown student", CreateViolationRequest{StudentID: "ghost", RegulationID: "reg-bolos", OccurredAt: &inSemester}, appErrors.ErrNotFound.Code},
		{"award regulation", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-juara", OccurredAt: &inSemester}, appErrors.ErrRegulationMismatch.Code},
		{"inactive regulation", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-old", OccurredAt: &inSemester}, appErrors.ErrValidation.Code},
		{"between semesters", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-bolos", OccurredAt: &holiday}, appErrors.ErrValidation.Code},
		{"bad semester", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-bolos", Semester: 3}, appErrors.ErrValidation.Code},
		{"bad year", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-bolos", SchoolYear: "24", Semester: 1}, appErrors.ErrValidation.Code},
		{"unknown year", CreateViolationRequest{StudentID: "s1", RegulationID: "reg-bolos", SchoolYear: "2030", Semester: 1}, appErrors.ErrNotFound.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req, nil)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, ledgers.keys)
}

func TestViolationServiceExplicitSemesterWins(t *testing.T) {
	svc, _, _, _ := newViolationFixture()
	holiday := time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)

	v, err := svc.Create(context.Background(), CreateViolationRequest{
		StudentID: "s1", RegulationID: "reg-bolos", OccurredAt: &holiday, SchoolYear: "2024", Semester: 1,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.SemesterOdd, v.Semester)
}

func TestViolationServiceUpdateAndDelete(t *testing.T) {
	svc, store, ledgers, audit := newViolationFixture()
	occurred := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	created, err := svc.Create(context.Background(), CreateViolationRequest{StudentID: "s1", RegulationID: "reg-bolos", OccurredAt: &occurred}, nil)
	require.NoError(t, err)
	store.items[created.ID] = *created

	note := "dipanggil ke BK"
	moved := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	updated, err := svc.Update(context.Background(), created.ID, UpdateViolationRequest{Description: &note, OccurredAt: &moved}, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Points)
	assert.Equal(t, models.SemesterEven, updated.Semester)
	assert.Equal(t, note, updated.Description)

	_, err = svc.Update(context.Background(), created.ID, UpdateViolationRequest{RegulationID: "reg-juara"}, nil)
	assert.Equal(t, appErrors.ErrRegulationMismatch.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), created.ID, nil))
	assert.NotContains(t, store.items, created.ID)
	assert.Equal(t, []string{"s1/2024", "s1/2024", "s1/2024"}, ledgers.keys)
	assert.Len(t, audit.logs, 3)

	err = svc.Delete(context.Background(), created.ID, nil)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func newAwardFixture() (*AwardService, *awardStoreStub, *invalidationRecorder, *auditLoggerStub) {
	store := &awardStoreStub{items: map[string]models.AwardDetail{}}
	ledgers := &invalidationRecorder{}
	audit := &auditLoggerStub{}
	svc := NewAwardService(store, eventStudents(), eventRegulations(), eventYears(), ledgers, audit, validator.New(), nil)
	return svc, store, ledgers, audit
}

func TestAwardServiceLifecycle(t *testing.T) {
	svc, store, ledgers, audit := newAwardFixture()
	occurred := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	counselor := &models.JWTClaims{UserID: "counselor-1", Role: models.RoleCounselor}

	proposed, err := svc.Propose(context.Background(), ProposeAwardRequest{StudentID: "s1", RegulationID: "reg-juara", OccurredAt: &occurred}, &models.JWTClaims{UserID: "teacher-1"})
	require.NoError(t, err)
	assert.Equal(t, models.AwardStatusProposed, proposed.Status)
	assert.Equal(t, 10, proposed.Points)
	assert.Empty(t, ledgers.keys, "proposals do not change any ledger")

	approved, err := svc.Approve(context.Background(), proposed.ID, AwardDecisionRequest{Note: "sertifikat terlampir"}, counselor)
	require.NoError(t, err)
	assert.Equal(t, models.AwardStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "counselor-1", *approved.ApprovedBy)
	assert.Equal(t, []string{"s1/2024"}, ledgers.keys)

	_, err = svc.Reject(context.Background(), proposed.ID, AwardDecisionRequest{}, counselor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAwardDecided.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), proposed.ID, counselor))
	assert.Empty(t, store.items)
	assert.Equal(t, []string{"s1/2024", "s1/2024"}, ledgers.keys)

	actions := make([]string, 0, len(audit.logs))
	for _, entry := range audit.logs {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{models.AuditActionCreate, models.AuditActionApprove, models.AuditActionDelete}, actions)
}

func TestAwardServiceRejectDoesNotInvalidate(t *testing.T) {
	svc, store, ledgers, _ := newAwardFixture()
	store.items["a-1"] = models.AwardDetail{Award: models.Award{ID: "a-1", StudentID: "s1", SchoolYear: "2024", Status: models.AwardStatusProposed}}

	rejected, err := svc.Reject(context.Background(), "a-1", AwardDecisionRequest{Note: "tidak ada bukti"}, &models.JWTClaims{UserID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, models.AwardStatusRejected, rejected.Status)
	require.NotNil(t, rejected.DecisionNote)
	assert.Empty(t, ledgers.keys)
}

func TestAwardServiceConcurrentDecision(t *testing.T) {
	svc, store, _, _ := newAwardFixture()
	store.items["a-1"] = models.AwardDetail{Award: models.Award{ID: "a-1", Status: models.AwardStatusProposed}}
	store.decideErr = sql.ErrNoRows

	_, err := svc.Approve(context.Background(), "a-1", AwardDecisionRequest{}, &models.JWTClaims{UserID: "admin"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAwardDecided.Code, appErrors.FromError(err).Code)
}

func TestAwardServiceProposeRequiresAwardRegulation(t *testing.T) {
	svc, _, _, _ := newAwardFixture()

	_, err := svc.Propose(context.Background(), ProposeAwardRequest{StudentID: "s1", RegulationID: "reg-bolos", SchoolYear: "2024", Semester: 1}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRegulationMismatch.Code, appErrors.FromError(err).Code)
}

func TestAwardServiceDecisionNeedsActor(t *testing.T) {
	svc, store, _, _ := newAwardFixture()
	store.items["a-1"] = models.AwardDetail{Award: models.Award{ID: "a-1", Status: models.AwardStatusProposed}}

	_, err := svc.Approve(context.Background(), "a-1", AwardDecisionRequest{}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestPlaceEventUsesActiveYear(t *testing.T) {
	placement, err := placeEvent(context.Background(), eventYears(), "", 0, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, eventPlacement{SchoolYear: "2024", Semester: models.SemesterOdd}, placement)

	_, err = placeEvent(context.Background(), &stubSchoolYears{}, "", 0, time.Now())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

type activeYearStub struct {
	year string
	err  error
}

func (a activeYearStub) ActiveSchoolYear(ctx context.Context) (string, error) {
	return a.year, a.err
}

func TestSchoolYearResolverFindActive(t *testing.T) {
	flagged := testSchoolYear()
	flagged.Year = "2023"
	flagged.IsActive = true
	current := testSchoolYear()
	current.IsActive = false
	years := &stubSchoolYears{years: map[string]models.SchoolYear{"2024": current, "2023": flagged}}

	configured := NewSchoolYearResolver(years, activeYearStub{year: "2024"})
	sy, err := configured.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024", sy.Year)

	fallback := NewSchoolYearResolver(years, activeYearStub{err: appErrors.Clone(appErrors.ErrNotFound, "active_school_year not configured")})
	sy, err = fallback.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2023", sy.Year)

	broken := NewSchoolYearResolver(years, activeYearStub{err: appErrors.Internal(fmt.Errorf("db down"), "failed to get configuration")})
	_, err = broken.FindActive(context.Background())
	require.Error(t, err)

	unconfigured := NewSchoolYearResolver(years, nil)
	sy, err = unconfigured.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2023", sy.Year)
}
