package devices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type memoryRegistry struct {
	devices map[string]Device
}

func newMemoryRegistry() *memoryRegistry {
	return &memoryRegistry{devices: make(map[string]Device)}
}

func (m *memoryRegistry) Upsert(_ context.Context, device Device) error {
	if err := device.Validate(); err != nil {
		return err
	}
	m.devices[device.DeviceID] = device
	return nil
}

func TestRegisterDevice(t *testing.T) {
	registry := newMemoryRegistry()
	handler, err := NewHandler(registry, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"device_id":"dev-1","push_token":"tok-1","platform":"android"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	device, ok := registry.devices["dev-1"]
	if !ok {
		t.Fatal("expected device to be registered")
	}
	if device.PushToken != "tok-1" || device.Platform != "android" {
		t.Fatalf("unexpected device %+v", device)
	}
}

func TestRegisterDeviceRefreshesToken(t *testing.T) {
	registry := newMemoryRegistry()
	handler, err := NewHandler(registry, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	for _, token := range []string{"tok-1", "tok-2"} {
		body := `{"device_id":"dev-1","push_token":"` + token + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/register", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
	}

	if got := registry.devices["dev-1"].PushToken; got != "tok-2" {
		t.Fatalf("expected refreshed token tok-2, got %q", got)
	}
}

func TestRegisterDeviceMissingFields(t *testing.T) {
	handler, err := NewHandler(newMemoryRegistry(), nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/register", strings.NewReader(`{"device_id":"dev-1"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRegisterDeviceMethodNotAllowed(t *testing.T) {
	handler, err := NewHandler(newMemoryRegistry(), nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/register", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}
