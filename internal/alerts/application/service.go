package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/observability/metrics"
)

// Event types emitted on alert lifecycle changes.
const (
	EventCreated = "created"
	EventUpdated = "updated"
)

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// AlertRepository is the persistence contract the service needs.
type AlertRepository interface {
	Create(ctx context.Context, alert *alerts.Alert) error
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	MarkResolved(ctx context.Context, id, evidencePath string, resolvedAt time.Time) error
	ListByStatusAndTime(ctx context.Context, status string, from, to time.Time) ([]alerts.Alert, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service handles the alert lifecycle: open on SOS activation, resolve on
// session stop or police action.
type Service struct {
	alerts   AlertRepository
	notifier AlertNotifier
	clock    Clock
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService constructs an alert service.
func NewService(repo AlertRepository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	service := &Service{
		alerts: repo,
		clock:  systemClock{},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// OpenAlert inserts a new active alert with the captured coordinates. The row is
// broadcast to subscribers immediately; evidence arrives later, if at all.
func (s *Service) OpenAlert(ctx context.Context, reporterID string, coords alerts.Coordinates) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	alert := &alerts.Alert{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		Latitude:   coords.Latitude,
		Longitude:  coords.Longitude,
		Status:     alerts.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	s.notify(ctx, EventCreated, *alert)
	return alert, nil
}

// ResolveAlert marks an alert resolved, attaching an evidence path when one was
// uploaded. An empty path resolves the alert without evidence. Resolving an
// already resolved alert is a no-op.
func (s *Service) ResolveAlert(ctx context.Context, id, evidencePath string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if alert.Status == alerts.StatusResolved {
		return alert, nil
	}
	resolvedAt := s.clock.Now().UTC()
	if err := s.alerts.MarkResolved(ctx, alert.ID, evidencePath, resolvedAt); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusResolved
	if evidencePath != "" {
		alert.EvidencePath = evidencePath
	}
	alert.ResolvedAt = &resolvedAt
	alert.UpdatedAt = resolvedAt
	s.notify(ctx, EventUpdated, *alert)
	return alert, nil
}

// GetAlert loads an alert by id.
func (s *Service) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	return s.alerts.GetByID(ctx, id)
}

// ListAlerts returns alerts by status and time window.
func (s *Service) ListAlerts(ctx context.Context, status string, from, to time.Time) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	return s.alerts.ListByStatusAndTime(ctx, status, from.UTC(), to.UTC())
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
