package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/audit"
	"safewatch-cloud/internal/auth"
	"safewatch-cloud/internal/evidence"
	"safewatch-cloud/internal/session"
)

// Clips larger than this are rejected at the handler.
const maxClipBytes = 64 << 20

// Handler exposes the SOS session controller over HTTP. Each device gets
// its own controller and gateway; the device id travels with every call.
type Handler struct {
	manager     *session.Manager
	auditLogger audit.Logger

	mu       sync.Mutex
	gateways map[string]*session.Gateway
}

// Deps are the collaborators a per-device controller needs.
type Deps struct {
	Opener   session.AlertOpener
	Resolver session.AlertResolver
	Uploader session.EvidenceUploader
	Config   session.Config
	Options  []session.ControllerOption
}

// NewHandler constructs a handler and its device-session manager.
func NewHandler(deps Deps, auditLogger audit.Logger) (*Handler, error) {
	if deps.Opener == nil || deps.Resolver == nil {
		return nil, errors.New("sos handler: nil alert service")
	}
	h := &Handler{
		auditLogger: auditLogger,
		gateways:    make(map[string]*session.Gateway),
	}

	manager, err := session.NewManager(func(deviceID string) (*session.Controller, error) {
		gateway := h.gateway(deviceID)
		opts := append([]session.ControllerOption{session.WithCapture(gateway)}, deps.Options...)
		return session.NewController(deps.Opener, deps.Resolver, deps.Uploader, gateway, deps.Config, opts...)
	})
	if err != nil {
		return nil, err
	}
	h.manager = manager
	return h, nil
}

// Close stops all device controllers.
func (h *Handler) Close() {
	if h == nil || h.manager == nil {
		return
	}
	h.manager.Close()
}

func (h *Handler) gateway(deviceID string) *session.Gateway {
	h.mu.Lock()
	defer h.mu.Unlock()
	gateway, ok := h.gateways[deviceID]
	if !ok {
		gateway = session.NewGateway()
		h.gateways[deviceID] = gateway
	}
	return gateway
}

// ServeHTTP handles /api/v1/sos subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/sos/activate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleActivate(w, r)
	case "/api/v1/sos/deactivate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDeactivate(w, r)
	case "/api/v1/sos/status":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatus(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID       string   `json:"device_id"`
		Latitude       *float64 `json:"latitude"`
		Longitude      *float64 `json:"longitude"`
		LocationDenied bool     `json:"location_denied"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	gateway := h.gateway(req.DeviceID)
	switch {
	case req.LocationDenied:
		gateway.SetLocationDenied()
	case req.Latitude != nil && req.Longitude != nil:
		gateway.SetLocation(alerts.Coordinates{Latitude: *req.Latitude, Longitude: *req.Longitude})
	}

	controller, err := h.manager.Controller(req.DeviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	snap, err := controller.Activate(r.Context(), auth.SubjectFromContext(r.Context()))
	if err != nil {
		respondSessionError(w, snap, err)
		return
	}

	h.recordAudit(r, "sos.activate", snap.AlertID, req.DeviceID)
	respondSnapshot(w, http.StatusOK, snap)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	var deviceID string
	var clip *evidence.Media

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxClipBytes); err != nil {
			http.Error(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		deviceID = r.FormValue("device_id")
		file, header, err := r.FormFile("clip")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxClipBytes+1))
			if readErr != nil {
				http.Error(w, "failed to read clip", http.StatusBadRequest)
				return
			}
			if len(data) > maxClipBytes {
				http.Error(w, "clip too large", http.StatusRequestEntityTooLarge)
				return
			}
			clip = &evidence.Media{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			http.Error(w, "invalid clip field", http.StatusBadRequest)
			return
		}
	} else {
		var req struct {
			DeviceID string `json:"device_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		deviceID = req.DeviceID
	}
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	gateway := h.gateway(deviceID)
	gateway.AttachClip(clip)

	controller, err := h.manager.Controller(deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	snap, err := controller.Deactivate(r.Context())
	if err != nil {
		respondSessionError(w, snap, err)
		return
	}

	h.recordAudit(r, "sos.deactivate", snap.AlertID, deviceID)
	respondSnapshot(w, http.StatusOK, snap)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	controller, err := h.manager.Controller(deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondSnapshot(w, http.StatusOK, controller.Snapshot())
}

func respondSnapshot(w http.ResponseWriter, status int, snap session.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(snap)
}

func respondSessionError(w http.ResponseWriter, snap session.Snapshot, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionInFlight), errors.Is(err, session.ErrNoActiveSession):
		status = http.StatusConflict
	case errors.Is(err, session.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, session.ErrLocationUnavailable):
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := struct {
		Error string           `json:"error"`
		State session.Snapshot `json:"state"`
	}{Error: err.Error(), State: snap}
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) recordAudit(r *http.Request, action, alertID, deviceID string) {
	if h.auditLogger == nil {
		return
	}
	meta, err := json.Marshal(map[string]string{"device_id": deviceID})
	if err != nil {
		meta = nil
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "alert",
		ResourceID:   alertID,
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
