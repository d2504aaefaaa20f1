package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"safewatch-cloud/internal/evidence"
	reports "safewatch-cloud/internal/reports/domain"
)

// ErrEmptyDescription marks a submission without text.
var ErrEmptyDescription = errors.New("reports: empty description")

// ReportRepository is the persistence contract the service needs.
type ReportRepository interface {
	Create(ctx context.Context, report *reports.Report) error
	GetByID(ctx context.Context, id string) (*reports.Report, error)
	UpdateStatus(ctx context.Context, id, status string, resolvedAt *time.Time, updatedAt time.Time) error
	List(ctx context.Context, reporterID, status string) ([]reports.Report, error)
}

// PhotoUploader stores photo evidence.
type PhotoUploader interface {
	Upload(ctx context.Context, prefix, id string, media evidence.Media) (string, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service coordinates report submissions and status changes.
type Service struct {
	repo     ReportRepository
	uploader PhotoUploader
	clock    Clock
	logger   *log.Logger
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithUploader enables photo attachments.
func WithUploader(uploader PhotoUploader) Option {
	return func(s *Service) {
		s.uploader = uploader
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs the report service.
func NewService(repo ReportRepository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("report service: nil repository")
	}
	s := &Service{
		repo:   repo,
		clock:  systemClock{},
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submission is one citizen report intake.
type Submission struct {
	ReporterID  string
	Description string
	Latitude    float64
	Longitude   float64
	Photo       *evidence.Media
}

// CreateReport files a submission. A photo is optional; if its upload
// fails the report is still created without one, the submission text
// matters more than the attachment.
func (s *Service) CreateReport(ctx context.Context, sub Submission) (*reports.Report, error) {
	if s == nil {
		return nil, errors.New("report service: nil service")
	}
	if strings.TrimSpace(sub.Description) == "" {
		return nil, ErrEmptyDescription
	}
	if !reports.ValidCoordinates(sub.Latitude, sub.Longitude) {
		return nil, reports.ErrInvalidCoordinates
	}

	now := s.clock.Now().UTC()
	report := &reports.Report{
		ID:          uuid.NewString(),
		ReporterID:  sub.ReporterID,
		Description: strings.TrimSpace(sub.Description),
		Latitude:    sub.Latitude,
		Longitude:   sub.Longitude,
		Status:      reports.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if sub.Photo != nil && s.uploader != nil {
		path, err := s.uploader.Upload(ctx, "report", report.ID, *sub.Photo)
		if err != nil {
			s.logger.Printf("report service: photo upload for %s: %v", report.ID, err)
		} else {
			report.PhotoPath = path
		}
	}

	if err := s.repo.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("report service: create: %w", err)
	}
	return report, nil
}

// UpdateStatus applies a police-side status transition.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*reports.Report, error) {
	if s == nil {
		return nil, errors.New("report service: nil service")
	}
	if !reports.ValidStatus(status) {
		return nil, reports.ErrInvalidTransition
	}

	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, reports.ErrNotFound
	}
	if report.Status == status {
		return report, nil
	}
	if !reports.CanTransition(report.Status, status) {
		return nil, reports.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	var resolvedAt *time.Time
	if status == reports.StatusResolved {
		resolvedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, id, status, resolvedAt, now); err != nil {
		return nil, fmt.Errorf("report service: update status: %w", err)
	}

	report.Status = status
	report.UpdatedAt = now
	report.ResolvedAt = resolvedAt
	return report, nil
}

// GetReport loads one report.
func (s *Service) GetReport(ctx context.Context, id string) (*reports.Report, error) {
	if s == nil {
		return nil, errors.New("report service: nil service")
	}
	report, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, reports.ErrNotFound
	}
	return report, nil
}

// ListReports returns reports, optionally filtered by reporter and status.
// An empty reporterID lists everyone's submissions.
func (s *Service) ListReports(ctx context.Context, reporterID, status string) ([]reports.Report, error) {
	if s == nil {
		return nil, errors.New("report service: nil service")
	}
	if status != "" && !reports.ValidStatus(status) {
		return nil, fmt.Errorf("report service: unknown status %q", status)
	}
	return s.repo.List(ctx, reporterID, status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
