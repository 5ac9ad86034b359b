package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
)

type ledgerStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type ledgerClassReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
}

type ledgerSchoolYearReader interface {
	FindByYear(ctx context.Context, year string) (*models.SchoolYear, error)
}

type ledgerEnrollmentReader interface {
	ListForClassPeriod(ctx context.Context, classID, schoolYear string, from, to time.Time) ([]models.EnrollmentDetail, error)
}

type ledgerEventLoader interface {
	LoadStudentYear(ctx context.Context, studentID, schoolYear string) (*models.StudentYearEvents, error)
}

type ledgerPolicyResolver interface {
	Resolve(ctx context.Context, year *models.SchoolYear) (models.ResetPolicy, error)
}

// LedgerServiceConfig tunes ledger derivation.
type LedgerServiceConfig struct {
	ClassConcurrency int
	CacheTTL         time.Duration
}

// LedgerService derives semester ledgers, yearly summaries and class summaries
// from the violation and award event log. Nothing it computes is stored.
type LedgerService struct {
	students    ledgerStudentReader
	classes     ledgerClassReader
	years       ledgerSchoolYearReader
	enrollments ledgerEnrollmentReader
	events      ledgerEventLoader
	policies    ledgerPolicyResolver
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cfg         LedgerServiceConfig
	// generation advances on every invalidation. A derivation started under an
	// older generation must not leave its result in the cache.
	generation atomic.Uint64
}

// NewLedgerService wires the ledger engine. cache and metrics may be nil.
func NewLedgerService(
	students ledgerStudentReader,
	classes ledgerClassReader,
	years ledgerSchoolYearReader,
	enrollments ledgerEnrollmentReader,
	events ledgerEventLoader,
	policies ledgerPolicyResolver,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg LedgerServiceConfig,
) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClassConcurrency <= 0 {
		cfg.ClassConcurrency = 8
	}
	return &LedgerService{
		students:    students,
		classes:     classes,
		years:       years,
		enrollments: enrollments,
		events:      events,
		policies:    policies,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// ComputeSemesterLedger returns the ledger of one student for one semester.
// Semester 2 includes the carry produced by semester 1 under the year's policy.
func (s *LedgerService) ComputeSemesterLedger(ctx context.Context, studentID, year string, semester int) (*models.SemesterLedger, error) {
	if err := validateLedgerKey(year, semester); err != nil {
		return nil, err
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	sem := models.Semester(semester)

	cacheKey := studentLedgerKey(studentID, year, "s"+strconv.Itoa(semester))
	var cached models.SemesterLedger
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	generation := s.generation.Load()
	start := time.Now()
	student, schoolYear, policy, events, err := s.loadStudentYear(ctx, studentID, year)
	if err != nil {
		return nil, err
	}
	ledger := deriveSemester(*student, *schoolYear, sem, policy, *events)
	s.reportAnomalies(studentID, year, ledger.Anomalies)
	s.metrics.ObserveLedger("semester", time.Since(start), ledger.Anomalies)

	s.storeLedger(ctx, cacheKey, ledger, generation)
	return &ledger, nil
}

// ComputeYearlySummary composes both semesters of a student from one snapshot.
func (s *LedgerService) ComputeYearlySummary(ctx context.Context, studentID, year string) (*models.YearlySummary, error) {
	if err := validateLedgerKey(year, int(models.SemesterOdd)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	cacheKey := studentLedgerKey(studentID, year, "yearly")
	var cached models.YearlySummary
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	generation := s.generation.Load()
	start := time.Now()
	student, schoolYear, policy, events, err := s.loadStudentYear(ctx, studentID, year)
	if err != nil {
		return nil, err
	}
	first, second := deriveYear(*student, *schoolYear, policy, *events)
	anomalies := mergeAnomalies(first.Anomalies, second.Anomalies)
	s.reportAnomalies(studentID, year, anomalies)
	s.metrics.ObserveLedger("yearly", time.Since(start), anomalies)

	summary := models.YearlySummary{
		Student:      *student,
		SchoolYear:   *schoolYear,
		Semester1:    first,
		Semester2:    second,
		YearEndTotal: second.NetPoints,
	}
	s.storeLedger(ctx, cacheKey, summary, generation)
	return &summary, nil
}

// ComputeClassSummary derives the semester ledger of every student whose
// enrollment in the class overlaps the semester and aggregates them. Rows are
// ordered by student name.
func (s *LedgerService) ComputeClassSummary(ctx context.Context, classID, year string, semester int) (*models.ClassSummary, error) {
	if err := validateLedgerKey(year, semester); err != nil {
		return nil, err
	}
	if strings.TrimSpace(classID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	sem := models.Semester(semester)

	cacheKey := classLedgerKey(classID, year, sem)
	var cached models.ClassSummary
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	generation := s.generation.Load()
	start := time.Now()
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return nil, notFoundOrInternal(err, "class not found", "failed to load class")
	}
	schoolYear, err := s.findSchoolYear(ctx, year)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Resolve(ctx, schoolYear)
	if err != nil {
		return nil, err
	}
	from, to := schoolYear.SemesterRange(sem)
	enrollments, err := s.enrollments.ListForClassPeriod(ctx, classID, year, from, to)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list class enrollments")
	}
	students := uniqueStudents(enrollments)

	rows := make([]models.ClassStudentSummary, len(students))
	anomalies := make([][]models.LedgerAnomaly, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ClassConcurrency)
	for i := range students {
		i := i
		g.Go(func() error {
			events, err := s.events.LoadStudentYear(gctx, students[i].ID, year)
			if err != nil {
				return appErrors.Internal(err, "failed to load student events")
			}
			ledger := deriveSemester(students[i], *schoolYear, sem, policy, *events)
			rows[i] = models.ClassStudentSummary{
				Student:              students[i],
				TotalViolationPoints: ledger.TotalViolationPoints,
				TotalAwardPoints:     ledger.TotalAwardPoints,
				InitialPoints:        ledger.InitialPoints,
				NetPoints:            ledger.NetPoints,
				ViolationCount:       ledger.ViolationCount,
				AwardCount:           ledger.AwardCount,
				AnomalyCount:         len(ledger.Anomalies),
			}
			anomalies[i] = ledger.Anomalies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flagged []models.LedgerAnomaly
	for i, list := range anomalies {
		s.reportAnomalies(students[i].ID, year, list)
		flagged = append(flagged, list...)
	}
	s.metrics.ObserveLedger("class", time.Since(start), flagged)

	sort.SliceStable(rows, func(a, b int) bool {
		if rows[a].Student.FullName == rows[b].Student.FullName {
			return rows[a].Student.ID < rows[b].Student.ID
		}
		return rows[a].Student.FullName < rows[b].Student.FullName
	})
	totals, averages := aggregateClass(rows)

	summary := models.ClassSummary{
		Class:      *class,
		SchoolYear: *schoolYear,
		Semester:   sem,
		StartDate:  from,
		EndDate:    to,
		Students:   rows,
		Totals:     totals,
		Averages:   averages,
	}
	s.storeLedger(ctx, cacheKey, summary, generation)
	return &summary, nil
}

// EffectivePolicy returns the reset policy that applies to the school year after
// environment defaults, configuration entries and year overrides are layered.
func (s *LedgerService) EffectivePolicy(ctx context.Context, year string) (*models.ResetPolicy, error) {
	if !models.ValidSchoolYear(year) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "year must be a four-digit school year")
	}
	schoolYear, err := s.findSchoolYear(ctx, year)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Resolve(ctx, schoolYear)
	if err != nil {
		return nil, err
	}
	return &policy, nil
}

// InvalidateStudent drops cached ledgers affected by a write to the student's events.
func (s *LedgerService) InvalidateStudent(ctx context.Context, studentID, year string) {
	s.generation.Add(1)
	if err := s.cache.InvalidateStudentYear(ctx, studentID, year); err != nil {
		s.logger.Warn("ledger cache invalidation failed",
			zap.String("student_id", studentID), zap.String("school_year", year), zap.Error(err))
	}
}

// InvalidateAll drops every cached ledger.
func (s *LedgerService) InvalidateAll(ctx context.Context) {
	s.generation.Add(1)
	if err := s.cache.InvalidateLedgers(ctx); err != nil {
		s.logger.Warn("ledger cache flush failed", zap.Error(err))
	}
}

// storeLedger caches value unless an invalidation ran since generation was read.
// The second check removes an entry written after a concurrent invalidation deleted the key.
func (s *LedgerService) storeLedger(ctx context.Context, key string, value interface{}, generation uint64) {
	if s.generation.Load() != generation {
		return
	}
	_ = s.cache.Set(ctx, key, value, s.cfg.CacheTTL)
	if s.generation.Load() != generation {
		_ = s.cache.Invalidate(ctx, key)
	}
}

func (s *LedgerService) loadStudentYear(ctx context.Context, studentID, year string) (*models.Student, *models.SchoolYear, models.ResetPolicy, *models.StudentYearEvents, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, nil, models.ResetPolicy{}, nil, notFoundOrInternal(err, "student not found", "failed to load student")
	}
	schoolYear, err := s.findSchoolYear(ctx, year)
	if err != nil {
		return nil, nil, models.ResetPolicy{}, nil, err
	}
	policy, err := s.policies.Resolve(ctx, schoolYear)
	if err != nil {
		return nil, nil, models.ResetPolicy{}, nil, err
	}
	events, err := s.events.LoadStudentYear(ctx, studentID, year)
	if err != nil {
		return nil, nil, models.ResetPolicy{}, nil, appErrors.Internal(err, "failed to load student events")
	}
	return student, schoolYear, policy, events, nil
}

func (s *LedgerService) findSchoolYear(ctx context.Context, year string) (*models.SchoolYear, error) {
	schoolYear, err := s.years.FindByYear(ctx, year)
	if err != nil {
		return nil, notFoundOrInternal(err, "school year not found", "failed to load school year")
	}
	return schoolYear, nil
}

func (s *LedgerService) reportAnomalies(studentID, year string, anomalies []models.LedgerAnomaly) {
	for _, anomaly := range anomalies {
		s.logger.Warn("ledger event excluded",
			zap.String("student_id", studentID),
			zap.String("school_year", year),
			zap.String("event_id", anomaly.EventID),
			zap.String("event_kind", string(anomaly.EventKind)),
			zap.String("reason", string(anomaly.Reason)),
			zap.String("detail", anomaly.Detail),
		)
	}
}

// validateLedgerKey rejects malformed input before any I/O.
func validateLedgerKey(year string, semester int) error {
	if !models.ValidSchoolYear(year) {
		return appErrors.Clone(appErrors.ErrValidation, "year must be a four-digit school year")
	}
	if !models.Semester(semester).Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be 1 or 2")
	}
	return nil
}

func notFoundOrInternal(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Internal(err, internal)
}

func uniqueStudents(enrollments []models.EnrollmentDetail) []models.Student {
	seen := make(map[string]struct{}, len(enrollments))
	students := make([]models.Student, 0, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.StudentID]; ok {
			continue
		}
		seen[e.StudentID] = struct{}{}
		students = append(students, models.Student{ID: e.StudentID, NIS: e.StudentNIS, FullName: e.StudentName, Active: true})
	}
	return students
}

// mergeAnomalies drops duplicates reported by both semesters of a year.
func mergeAnomalies(lists ...[]models.LedgerAnomaly) []models.LedgerAnomaly {
	seen := make(map[string]struct{})
	merged := make([]models.LedgerAnomaly, 0)
	for _, list := range lists {
		for _, anomaly := range list {
			key := string(anomaly.EventKind) + ":" + anomaly.EventID
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, anomaly)
		}
	}
	return merged
}

// aggregateClass sums the student rows and divides by the student count.
func aggregateClass(rows []models.ClassStudentSummary) (models.ClassTotals, models.ClassAverages) {
	totals := models.ClassTotals{StudentCount: len(rows)}
	for _, row := range rows {
		totals.TotalViolationPoints += row.TotalViolationPoints
		totals.TotalAwardPoints += row.TotalAwardPoints
		totals.NetPoints += row.NetPoints
		totals.ViolationCount += row.ViolationCount
		totals.AwardCount += row.AwardCount
	}
	if len(rows) == 0 {
		return totals, models.ClassAverages{}
	}
	n := float64(len(rows))
	return totals, models.ClassAverages{
		TotalViolationPoints: float64(totals.TotalViolationPoints) / n,
		TotalAwardPoints:     float64(totals.TotalAwardPoints) / n,
		NetPoints:            float64(totals.NetPoints) / n,
		ViolationCount:       float64(totals.ViolationCount) / n,
		AwardCount:           float64(totals.AwardCount) / n,
	}
}
