package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/evidence"
	"safewatch-cloud/internal/session"
)

type memoryAlertService struct {
	mu      sync.Mutex
	rows    map[string]alerts.Alert
	inserts int
}

func newMemoryAlertService() *memoryAlertService {
	return &memoryAlertService{rows: make(map[string]alerts.Alert)}
}

func (m *memoryAlertService) OpenAlert(_ context.Context, reporterID string, coords alerts.Coordinates) (*alerts.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	alert := alerts.Alert{
		ID:         fmt.Sprintf("a%d", m.inserts),
		ReporterID: reporterID,
		Latitude:   coords.Latitude,
		Longitude:  coords.Longitude,
		Status:     alerts.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
	m.rows[alert.ID] = alert
	return &alert, nil
}

func (m *memoryAlertService) ResolveAlert(_ context.Context, id, evidencePath string) (*alerts.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.rows[id]
	if !ok {
		return nil, alerts.ErrNotFound
	}
	alert.Status = alerts.StatusResolved
	if evidencePath != "" {
		alert.EvidencePath = evidencePath
	}
	m.rows[id] = alert
	return &alert, nil
}

func (m *memoryAlertService) row(t *testing.T, id string) alerts.Alert {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	alert, ok := m.rows[id]
	if !ok {
		t.Fatalf("no alert row %q", id)
	}
	return alert
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Write(_ context.Context, name string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[name] = data
	return nil
}

func (m *memoryStore) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[name], nil
}

func (m *memoryStore) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok, nil
}

type silentWriter struct{}

func (silentWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestHandler(t *testing.T, svc *memoryAlertService) (*Handler, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	uploader, err := evidence.NewUploader(store)
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	handler, err := NewHandler(Deps{
		Opener:   svc,
		Resolver: svc,
		Uploader: uploader,
		Options:  []session.ControllerOption{session.WithLogger(log.New(silentWriter{}, "", 0))},
	}, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	t.Cleanup(handler.Close)
	return handler, store
}

func activate(t *testing.T, handler *Handler, deviceID string) session.Snapshot {
	t.Helper()
	body := fmt.Sprintf(`{"device_id":%q,"latitude":37.7749,"longitude":-122.4194}`, deviceID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/activate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap session.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func waitForIdle(t *testing.T, handler *Handler, deviceID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sos/status?device_id="+deviceID, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		var snap session.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snap.State == session.StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for idle state")
}

func TestActivateEndpoint(t *testing.T) {
	svc := newMemoryAlertService()
	handler, _ := newTestHandler(t, svc)

	snap := activate(t, handler, "device-1")
	if snap.State != session.StateActive || snap.AlertID == "" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	row := svc.row(t, snap.AlertID)
	if row.Latitude != 37.7749 || row.Longitude != -122.4194 {
		t.Fatalf("unexpected coordinates %v %v", row.Latitude, row.Longitude)
	}
}

func TestActivateConflictWhileInFlight(t *testing.T) {
	svc := newMemoryAlertService()
	handler, _ := newTestHandler(t, svc)

	activate(t, handler, "device-1")

	body := `{"device_id":"device-1","latitude":37.7749,"longitude":-122.4194}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/activate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if svc.inserts != 1 {
		t.Fatalf("expected 1 insert, got %d", svc.inserts)
	}
}

func TestActivateLocationDenied(t *testing.T) {
	svc := newMemoryAlertService()
	handler, _ := newTestHandler(t, svc)

	body := `{"device_id":"device-1","location_denied":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/activate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.inserts != 0 {
		t.Fatalf("expected no inserts, got %d", svc.inserts)
	}
	waitForIdle(t, handler, "device-1")
}

func TestDeactivateWithClipUploadsEvidence(t *testing.T) {
	svc := newMemoryAlertService()
	handler, store := newTestHandler(t, svc)

	snap := activate(t, handler, "device-1")

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("device_id", "device-1"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("clip", "clip.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("frames")); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/deactivate", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	waitForIdle(t, handler, "device-1")

	row := svc.row(t, snap.AlertID)
	if row.Status != alerts.StatusResolved {
		t.Fatalf("expected resolved row, got %q", row.Status)
	}
	if !strings.HasPrefix(row.EvidencePath, "alert_"+snap.AlertID+"_") || !strings.HasSuffix(row.EvidencePath, ".mp4") {
		t.Fatalf("unexpected evidence path %q", row.EvidencePath)
	}
	store.mu.Lock()
	_, uploaded := store.objects[row.EvidencePath]
	store.mu.Unlock()
	if !uploaded {
		t.Fatalf("expected uploaded object %q", row.EvidencePath)
	}
}

func TestDeactivateWithoutClipResolvesWithoutEvidence(t *testing.T) {
	svc := newMemoryAlertService()
	handler, _ := newTestHandler(t, svc)

	snap := activate(t, handler, "device-1")

	body := `{"device_id":"device-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/deactivate", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	waitForIdle(t, handler, "device-1")

	row := svc.row(t, snap.AlertID)
	if row.Status != alerts.StatusResolved || row.EvidencePath != "" {
		t.Fatalf("expected resolved row without evidence, got %+v", row)
	}
}

func TestDeactivateWithoutSessionConflict(t *testing.T) {
	handler, _ := newTestHandler(t, newMemoryAlertService())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sos/deactivate", strings.NewReader(`{"device_id":"device-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestStatusRequiresDeviceID(t *testing.T) {
	handler, _ := newTestHandler(t, newMemoryAlertService())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sos/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSessionsAreIndependentPerDevice(t *testing.T) {
	svc := newMemoryAlertService()
	handler, _ := newTestHandler(t, svc)

	first := activate(t, handler, "device-1")
	second := activate(t, handler, "device-2")
	if first.AlertID == second.AlertID {
		t.Fatal("expected distinct alerts per device")
	}
	if svc.inserts != 2 {
		t.Fatalf("expected 2 inserts, got %d", svc.inserts)
	}
}
