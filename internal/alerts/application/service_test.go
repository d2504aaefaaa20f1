package application

import (
	"context"
	"testing"
	"time"

	alerts "safewatch-cloud/internal/alerts/domain"
)

type memoryAlertRepo struct {
	rows    map[string]alerts.Alert
	inserts int
}

func newMemoryAlertRepo() *memoryAlertRepo {
	return &memoryAlertRepo{rows: make(map[string]alerts.Alert)}
}

func (m *memoryAlertRepo) Create(_ context.Context, alert *alerts.Alert) error {
	m.inserts++
	m.rows[alert.ID] = *alert
	return nil
}

func (m *memoryAlertRepo) GetByID(_ context.Context, id string) (*alerts.Alert, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	copied := row
	return &copied, nil
}

func (m *memoryAlertRepo) MarkResolved(_ context.Context, id, evidencePath string, resolvedAt time.Time) error {
	row := m.rows[id]
	row.Status = alerts.StatusResolved
	if evidencePath != "" {
		row.EvidencePath = evidencePath
	}
	row.ResolvedAt = &resolvedAt
	row.UpdatedAt = resolvedAt
	m.rows[id] = row
	return nil
}

func (m *memoryAlertRepo) ListByStatusAndTime(_ context.Context, status string, _, _ time.Time) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for _, row := range m.rows {
		if status == "" || row.Status == status {
			result = append(result, row)
		}
	}
	return result, nil
}

type recordingNotifier struct {
	events []AlertEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event AlertEvent) {
	r.events = append(r.events, event)
}

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

func TestOpenAlertCreatesActiveRowWithCoordinates(t *testing.T) {
	repo := newMemoryAlertRepo()
	notifier := &recordingNotifier{}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	service, err := NewService(repo, WithNotifier(notifier), WithClock(fixedClock{at: now}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	alert, err := service.OpenAlert(context.Background(), "user-1", alerts.Coordinates{Latitude: 37.7749, Longitude: -122.4194})
	if err != nil {
		t.Fatalf("open alert: %v", err)
	}
	if alert.ID == "" {
		t.Fatal("expected generated alert id")
	}
	if alert.Status != alerts.StatusActive {
		t.Fatalf("expected status active, got %s", alert.Status)
	}
	if alert.Latitude != 37.7749 || alert.Longitude != -122.4194 {
		t.Fatalf("unexpected coordinates: %f, %f", alert.Latitude, alert.Longitude)
	}
	if alert.EvidencePath != "" {
		t.Fatalf("expected no evidence path before upload, got %s", alert.EvidencePath)
	}
	if repo.inserts != 1 {
		t.Fatalf("expected 1 insert, got %d", repo.inserts)
	}
	if len(notifier.events) != 1 || notifier.events[0].Type != EventCreated {
		t.Fatalf("expected one created event, got %+v", notifier.events)
	}
}

func TestOpenAlertRejectsInvalidCoordinates(t *testing.T) {
	repo := newMemoryAlertRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.OpenAlert(context.Background(), "", alerts.Coordinates{Latitude: 123, Longitude: 0}); err == nil {
		t.Fatal("expected error for out-of-range latitude")
	}
	if repo.inserts != 0 {
		t.Fatalf("expected no insert, got %d", repo.inserts)
	}
}

func TestResolveAlertAttachesEvidence(t *testing.T) {
	repo := newMemoryAlertRepo()
	notifier := &recordingNotifier{}
	service, err := NewService(repo, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	alert, err := service.OpenAlert(context.Background(), "", alerts.Coordinates{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("open alert: %v", err)
	}

	resolved, err := service.ResolveAlert(context.Background(), alert.ID, "alert_"+alert.ID+"_1700000000.mp4")
	if err != nil {
		t.Fatalf("resolve alert: %v", err)
	}
	if resolved.Status != alerts.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.EvidencePath == "" {
		t.Fatal("expected evidence path set")
	}
	if len(notifier.events) != 2 || notifier.events[1].Type != EventUpdated {
		t.Fatalf("expected updated event, got %+v", notifier.events)
	}
}

func TestResolveAlertIdempotentWhenAlreadyResolved(t *testing.T) {
	repo := newMemoryAlertRepo()
	notifier := &recordingNotifier{}
	service, err := NewService(repo, WithNotifier(notifier))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	alert, err := service.OpenAlert(context.Background(), "", alerts.Coordinates{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("open alert: %v", err)
	}
	if _, err := service.ResolveAlert(context.Background(), alert.ID, ""); err != nil {
		t.Fatalf("resolve alert: %v", err)
	}
	events := len(notifier.events)

	again, err := service.ResolveAlert(context.Background(), alert.ID, "late.mp4")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.EvidencePath != "" {
		t.Fatalf("expected no evidence on already resolved alert, got %s", again.EvidencePath)
	}
	if len(notifier.events) != events {
		t.Fatalf("expected no extra events, got %d", len(notifier.events)-events)
	}
}

func TestResolveAlertNotFound(t *testing.T) {
	repo := newMemoryAlertRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := service.ResolveAlert(context.Background(), "missing", ""); err != alerts.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
