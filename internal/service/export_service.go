package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	"github.com/noah-isme/sma-discipline-api/pkg/export"
	"github.com/noah-isme/sma-discipline-api/pkg/storage"
)

// ledgerSource is the subset of LedgerService the exporter reads from.
type ledgerSource interface {
	ComputeClassSummary(ctx context.Context, classID, year string, semester int) (*models.ClassSummary, error)
	ComputeYearlySummary(ctx context.Context, studentID, year string) (*models.YearlySummary, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService turns class ledgers into files and issues signed download links.
type ExportService struct {
	ledgers   ledgerSource
	storage   fileStorage
	renderers map[models.ReportFormat]datasetRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService with the csv, pdf and xlsx renderers.
func NewExportService(ledgers ledgerSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		ledgers: ledgers,
		storage: files,
		renderers: map[models.ReportFormat]datasetRenderer{
			models.ReportFormatCSV:  export.NewCSVExporter(),
			models.ReportFormatPDF:  export.NewPDFExporter(),
			models.ReportFormatXLSX: export.NewXLSXExporter("Ledger"),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the dataset for the job, renders it and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("report job is nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %q", job.Params.Format)
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          prefix + "/export/" + token,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl, defaulting to the configured result TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	parts := []string{string(job.Type), sanitizeFilename(job.Params.ClassID), sanitizeFilename(job.Params.SchoolYear)}
	if job.Type == models.ReportTypeClassSemester {
		parts = append(parts, "s"+strconv.Itoa(int(job.Params.Semester)))
	}
	parts = append(parts, s.now().Format("20060102_150405"))
	return strings.Join(parts, "_") + "." + string(job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", "-")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeClassSemester:
		return s.classSemesterDataset(ctx, job.Params)
	case models.ReportTypeClassYearly:
		return s.classYearlyDataset(ctx, job.Params)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %q", job.Type)
	}
}

var (
	classSemesterHeaders = []string{"No", "NIS", "Student", "Violations", "Violation Points", "Award Points", "Initial Points", "Net Points"}
	classSemesterNumeric = []string{"No", "Violations", "Violation Points", "Award Points", "Initial Points", "Net Points"}
)

func (s *ExportService) classSemesterDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	summary, err := s.ledgers.ComputeClassSummary(ctx, params.ClassID, params.SchoolYear, int(params.Semester))
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(summary.Students))
	for i, st := range summary.Students {
		rows = append(rows, map[string]string{
			"No":               strconv.Itoa(i + 1),
			"NIS":              st.Student.NIS,
			"Student":          st.Student.FullName,
			"Violations":       strconv.Itoa(st.ViolationCount),
			"Violation Points": strconv.Itoa(st.TotalViolationPoints),
			"Award Points":     strconv.Itoa(st.TotalAwardPoints),
			"Initial Points":   strconv.Itoa(st.InitialPoints),
			"Net Points":       strconv.Itoa(st.NetPoints),
		})
	}
	footer := []map[string]string{
		{
			"Student":          "Total",
			"Violations":       strconv.Itoa(summary.Totals.ViolationCount),
			"Violation Points": strconv.Itoa(summary.Totals.TotalViolationPoints),
			"Award Points":     strconv.Itoa(summary.Totals.TotalAwardPoints),
			"Net Points":       strconv.Itoa(summary.Totals.NetPoints),
		},
		{
			"Student":          "Average",
			"Violations":       formatAverage(summary.Averages.ViolationCount),
			"Violation Points": formatAverage(summary.Averages.TotalViolationPoints),
			"Award Points":     formatAverage(summary.Averages.TotalAwardPoints),
			"Net Points":       formatAverage(summary.Averages.NetPoints),
		},
	}
	return export.Dataset{
		Title: "Class Discipline Summary " + summary.Class.Name,
		Subtitle: fmt.Sprintf("%s semester %d (%s to %s)", summary.SchoolYear.Name, summary.Semester,
			summary.StartDate.Format("2006-01-02"), summary.EndDate.Format("2006-01-02")),
		Headers: classSemesterHeaders,
		Rows:    rows,
		Footer:  footer,
		Numeric: classSemesterNumeric,
	}, nil
}

var (
	classYearlyHeaders = []string{"No", "NIS", "Student", "S1 Net", "S1 Status", "Carried", "S2 Violation Points", "S2 Award Points", "Year End Total"}
	classYearlyNumeric = []string{"No", "S1 Net", "Carried", "S2 Violation Points", "S2 Award Points", "Year End Total"}
)

// classYearlyDataset lists every student enrolled in either semester with their yearly summary.
func (s *ExportService) classYearlyDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, error) {
	var (
		className string
		yearName  string
	)
	students := map[string]models.Student{}
	for _, semester := range []models.Semester{models.SemesterOdd, models.SemesterEven} {
		summary, err := s.ledgers.ComputeClassSummary(ctx, params.ClassID, params.SchoolYear, int(semester))
		if err != nil {
			return export.Dataset{}, err
		}
		className, yearName = summary.Class.Name, summary.SchoolYear.Name
		for _, st := range summary.Students {
			students[st.Student.ID] = st.Student
		}
	}
	ordered := make([]models.Student, 0, len(students))
	for _, st := range students {
		ordered = append(ordered, st)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].FullName != ordered[j].FullName {
			return ordered[i].FullName < ordered[j].FullName
		}
		return ordered[i].ID < ordered[j].ID
	})

	rows := make([]map[string]string, 0, len(ordered))
	total := 0
	for i, st := range ordered {
		if err := ctx.Err(); err != nil {
			return export.Dataset{}, err
		}
		yearly, err := s.ledgers.ComputeYearlySummary(ctx, st.ID, params.SchoolYear)
		if err != nil {
			return export.Dataset{}, err
		}
		status, carried := "", 0
		if reset := yearly.Semester1.Reset; reset != nil {
			status, carried = string(reset.Status), reset.NextSemesterPoints
		}
		total += yearly.YearEndTotal
		rows = append(rows, map[string]string{
			"No":                  strconv.Itoa(i + 1),
			"NIS":                 st.NIS,
			"Student":             st.FullName,
			"S1 Net":              strconv.Itoa(yearly.Semester1.NetPoints),
			"S1 Status":           status,
			"Carried":             strconv.Itoa(carried),
			"S2 Violation Points": strconv.Itoa(yearly.Semester2.TotalViolationPoints),
			"S2 Award Points":     strconv.Itoa(yearly.Semester2.TotalAwardPoints),
			"Year End Total":      strconv.Itoa(yearly.YearEndTotal),
		})
	}
	average := 0.0
	if len(ordered) > 0 {
		average = float64(total) / float64(len(ordered))
	}
	return export.Dataset{
		Title:    "Yearly Discipline Summary " + className,
		Subtitle: yearName,
		Headers:  classYearlyHeaders,
		Numeric:  classYearlyNumeric,
		Rows:     rows,
		Footer: []map[string]string{
			{"Student": "Total", "Year End Total": strconv.Itoa(total)},
			{"Student": "Average", "Year End Total": formatAverage(average)},
		},
	}, nil
}

func formatAverage(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
