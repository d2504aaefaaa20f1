package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"safewatch-cloud/internal/auth"
	"safewatch-cloud/internal/evidence"
	reportapp "safewatch-cloud/internal/reports/application"
	reports "safewatch-cloud/internal/reports/domain"
)

type memoryReportRepo struct {
	reports map[string]reports.Report
}

func newMemoryReportRepo() *memoryReportRepo {
	return &memoryReportRepo{reports: make(map[string]reports.Report)}
}

func (m *memoryReportRepo) Create(_ context.Context, report *reports.Report) error {
	m.reports[report.ID] = *report
	return nil
}

func (m *memoryReportRepo) GetByID(_ context.Context, id string) (*reports.Report, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, reports.ErrNotFound
	}
	return &report, nil
}

func (m *memoryReportRepo) UpdateStatus(_ context.Context, id, status string, resolvedAt *time.Time, updatedAt time.Time) error {
	report, ok := m.reports[id]
	if !ok {
		return reports.ErrNotFound
	}
	report.Status = status
	report.ResolvedAt = resolvedAt
	report.UpdatedAt = updatedAt
	m.reports[id] = report
	return nil
}

func (m *memoryReportRepo) List(_ context.Context, reporterID, status string) ([]reports.Report, error) {
	var out []reports.Report
	for _, report := range m.reports {
		if reporterID != "" && report.ReporterID != reporterID {
			continue
		}
		if status == "" || report.Status == status {
			out = append(out, report)
		}
	}
	return out, nil
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Write(_ context.Context, name string, data []byte, _ string) error {
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[name] = data
	return nil
}

func (m *memoryStore) Read(_ context.Context, name string) ([]byte, error) {
	return m.objects[name], nil
}

func (m *memoryStore) Exists(_ context.Context, name string) (bool, error) {
	_, ok := m.objects[name]
	return ok, nil
}

func newTestHandler(t *testing.T, repo *memoryReportRepo) (*Handler, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	uploader, err := evidence.NewUploader(store)
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	service, err := reportapp.NewService(repo, reportapp.WithUploader(uploader))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, store
}

func TestCreateReportJSON(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	body := `{"description":"broken streetlight","latitude":37.7749,"longitude":-122.4194}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var report reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.Status != reports.StatusOpen || report.Description != "broken streetlight" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Latitude != 37.7749 || report.Longitude != -122.4194 {
		t.Fatalf("expected submitted coordinates, got (%v,%v)", report.Latitude, report.Longitude)
	}
	stored := repo.reports[report.ID]
	if stored.Latitude != 37.7749 || stored.Longitude != -122.4194 {
		t.Fatalf("expected stored coordinates, got (%v,%v)", stored.Latitude, stored.Longitude)
	}
}

func TestCreateReportMultipartWithPhoto(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, store := newTestHandler(t, repo)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("description", "abandoned car"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.WriteField("latitude", "40.7128"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.WriteField("longitude", "-74.0060"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var report reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if report.PhotoPath == "" {
		t.Fatal("expected photo path on report")
	}
	if report.Latitude != 40.7128 || report.Longitude != -74.0060 {
		t.Fatalf("expected submitted coordinates, got (%v,%v)", report.Latitude, report.Longitude)
	}
	if !strings.HasPrefix(report.PhotoPath, "report_"+report.ID+"_") {
		t.Fatalf("unexpected photo path %q", report.PhotoPath)
	}
	if _, ok := store.objects[report.PhotoPath]; !ok {
		t.Fatalf("expected uploaded object %q", report.PhotoPath)
	}
}

func TestCreateReportRequiresDescription(t *testing.T) {
	handler, _ := newTestHandler(t, newMemoryReportRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(`{"description":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestStatusTransitionEndpoint(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	repo.reports["r1"] = reports.Report{ID: "r1", Description: "noise", Status: reports.StatusOpen}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/r1/status", strings.NewReader(`{"status":"in_progress"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if repo.reports["r1"].Status != reports.StatusInProgress {
		t.Fatalf("expected in_progress, got %q", repo.reports["r1"].Status)
	}
}

func TestStatusTransitionConflict(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	repo.reports["r1"] = reports.Report{ID: "r1", Description: "noise", Status: reports.StatusResolved}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/r1/status", strings.NewReader(`{"status":"open"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
}

func TestListReportsScopedToCitizen(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	repo.reports["r1"] = reports.Report{ID: "r1", ReporterID: "alice", Description: "noise", Status: reports.StatusOpen}
	repo.reports["r2"] = reports.Report{ID: "r2", ReporterID: "bob", Description: "litter", Status: reports.StatusOpen}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleCitizen, "alice"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var list []reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" {
		t.Fatalf("expected only alice's report, got %+v", list)
	}

	// Police see every submission.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RolePolice, "officer-7"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected both reports for police, got %+v", list)
	}
}

func TestGetReportScopedToReporter(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	repo.reports["r1"] = reports.Report{ID: "r1", ReporterID: "alice", Description: "noise", Status: reports.StatusOpen}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/r1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleCitizen, "bob"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another citizen's report, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/r1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleCitizen, "alice"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own report, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/r1", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RolePolice, "officer-7"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for police, got %d", rec.Code)
	}
}

func TestListReportsFiltersByStatus(t *testing.T) {
	repo := newMemoryReportRepo()
	handler, _ := newTestHandler(t, repo)

	repo.reports["r1"] = reports.Report{ID: "r1", Description: "noise", Status: reports.StatusOpen}
	repo.reports["r2"] = reports.Report{ID: "r2", Description: "litter", Status: reports.StatusResolved}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports?status=open", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var list []reports.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r1" {
		t.Fatalf("unexpected list %+v", list)
	}
}
