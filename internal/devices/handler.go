package devices

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"safewatch-cloud/internal/audit"
	"safewatch-cloud/internal/auth"
)

// Upserter persists device registrations.
type Upserter interface {
	Upsert(ctx context.Context, device Device) error
}

// Handler provides device registration endpoints.
type Handler struct {
	registry    Upserter
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(registry Upserter, auditLogger audit.Logger) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("devices handler: nil registry")
	}
	return &Handler{registry: registry, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/devices/register.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/devices/register" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		DeviceID  string `json:"device_id"`
		PushToken string `json:"push_token"`
		Platform  string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	device := Device{
		DeviceID:  req.DeviceID,
		PushToken: req.PushToken,
		Platform:  req.Platform,
		UserID:    auth.SubjectFromContext(r.Context()),
	}
	if err := h.registry.Upsert(r.Context(), device); err != nil {
		if errors.Is(err, ErrInvalidDevice) {
			http.Error(w, "device_id and push_token are required", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.recordAudit(r, device)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordAudit(r *http.Request, device Device) {
	if h.auditLogger == nil {
		return
	}
	meta, err := json.Marshal(map[string]string{"platform": device.Platform})
	if err != nil {
		meta = nil
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "device.register",
		ResourceType: "device",
		ResourceID:   device.DeviceID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
