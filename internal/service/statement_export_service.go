package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-collective-api/internal/models"
	"github.com/noah-isme/edu-collective-api/pkg/export"
	"github.com/noah-isme/edu-collective-api/pkg/storage"
)

type statementEntryLister interface {
	ListBetween(ctx context.Context, courseID *int64, from, to *time.Time) ([]models.TreasuryEntry, error)
}

type statementCourseTitleReader interface {
	FindDetail(ctx context.Context, id int64) (*models.CourseDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// StatementExportConfig tunes export behaviour.
type StatementExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// StatementResult captures successful generation metadata.
type StatementResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.StatementFormat
	ExpiresAt    time.Time
}

// StatementExportService renders treasury journal extracts and
// persists the resulting files behind signed download tokens.
type StatementExportService struct {
	entries statementEntryLister
	courses statementCourseTitleReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     StatementExportConfig
}

// NewStatementExportService constructs a StatementExportService.
func NewStatementExportService(entries statementEntryLister, courses statementCourseTitleReader, store fileStorage, signer *storage.SignedURLSigner, cfg StatementExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *StatementExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &StatementExportService{
		entries: entries,
		courses: courses,
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Generate builds the journal extract for the job's window and stores
// the rendered statement.
func (s *StatementExportService) Generate(ctx context.Context, job *models.StatementJob) (*StatementResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job.Params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.StatementFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.StatementFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/statements/download/%s", signedURL, token)

	return &StatementResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *StatementExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *StatementExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored statement file.
func (s *StatementExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to the configured
// ResultTTL when ttl <= 0).
func (s *StatementExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *StatementExportService) buildDataset(ctx context.Context, params models.StatementParams) (export.Dataset, string, error) {
	entries, err := s.entries.ListBetween(ctx, params.CourseID, params.From, params.To)
	if err != nil {
		return export.Dataset{}, "", err
	}

	title := "Treasury Statement"
	if params.CourseID != nil {
		title = fmt.Sprintf("Course %d Statement", *params.CourseID)
		if detail, err := s.courses.FindDetail(ctx, *params.CourseID); err == nil {
			title = fmt.Sprintf("Course Statement: %s", detail.Title)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return export.Dataset{}, "", err
		}
	}

	rows := make([]map[string]string, 0, len(entries)+3)
	var totalIn, totalOut int64
	for _, entry := range entries {
		course := ""
		if entry.CourseID != nil {
			course = strconv.FormatInt(*entry.CourseID, 10)
		}
		rows = append(rows, map[string]string{
			"Date":         entry.CreatedAt.UTC().Format(time.RFC3339),
			"Direction":    string(entry.Direction),
			"Kind":         string(entry.Kind),
			"Asset":        entry.Asset,
			"Amount":       strconv.FormatInt(entry.Amount, 10),
			"Counterparty": string(entry.Counterparty),
			"Course":       course,
		})
		switch entry.Direction {
		case models.EntryDirectionIn:
			totalIn += entry.Amount
		case models.EntryDirectionOut:
			totalOut += entry.Amount
		}
	}
	rows = append(rows,
		map[string]string{"Date": "", "Direction": "", "Kind": "TOTAL IN", "Asset": "", "Amount": strconv.FormatInt(totalIn, 10), "Counterparty": "", "Course": ""},
		map[string]string{"Date": "", "Direction": "", "Kind": "TOTAL OUT", "Asset": "", "Amount": strconv.FormatInt(totalOut, 10), "Counterparty": "", "Course": ""},
		map[string]string{"Date": "", "Direction": "", "Kind": "NET", "Asset": "", "Amount": strconv.FormatInt(totalIn-totalOut, 10), "Counterparty": "", "Course": ""},
	)

	dataset := export.Dataset{
		Headers: []string{"Date", "Direction", "Kind", "Asset", "Amount", "Counterparty", "Course"},
		Rows:    rows,
	}
	return dataset, title, nil
}

func (s *StatementExportService) buildFilename(job *models.StatementJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "org"
	if job.Params.CourseID != nil {
		scope = fmt.Sprintf("course%d", *job.Params.CourseID)
	}
	return fmt.Sprintf("statement_%s_%s.%s", sanitizeFilename(scope), timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
