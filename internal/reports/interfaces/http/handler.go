package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"safewatch-cloud/internal/audit"
	"safewatch-cloud/internal/auth"
	"safewatch-cloud/internal/evidence"
	reportapp "safewatch-cloud/internal/reports/application"
	reports "safewatch-cloud/internal/reports/domain"
)

// Uploads larger than this are rejected at the handler.
const maxPhotoBytes = 16 << 20

// Handler provides report HTTP endpoints.
type Handler struct {
	service     *reportapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *reportapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reports handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /api/v1/reports and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/reports":
		switch r.Method {
		case http.MethodPost:
			h.handleCreate(w, r)
		case http.MethodGet:
			h.handleList(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/reports/"):
		h.handleSubroute(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sub := reportapp.Submission{ReporterID: auth.SubjectFromContext(r.Context())}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			http.Error(w, "invalid multipart body", http.StatusBadRequest)
			return
		}
		sub.Description = r.FormValue("description")
		latitude, err := parseCoordinate(r.FormValue("latitude"))
		if err != nil {
			http.Error(w, "invalid latitude", http.StatusBadRequest)
			return
		}
		longitude, err := parseCoordinate(r.FormValue("longitude"))
		if err != nil {
			http.Error(w, "invalid longitude", http.StatusBadRequest)
			return
		}
		sub.Latitude = latitude
		sub.Longitude = longitude
		file, header, err := r.FormFile("photo")
		if err == nil {
			defer file.Close()
			data, readErr := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
			if readErr != nil {
				http.Error(w, "failed to read photo", http.StatusBadRequest)
				return
			}
			if len(data) > maxPhotoBytes {
				http.Error(w, "photo too large", http.StatusRequestEntityTooLarge)
				return
			}
			sub.Photo = &evidence.Media{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			http.Error(w, "invalid photo field", http.StatusBadRequest)
			return
		}
	} else {
		var req struct {
			Description string  `json:"description"`
			Latitude    float64 `json:"latitude"`
			Longitude   float64 `json:"longitude"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		sub.Description = req.Description
		sub.Latitude = req.Latitude
		sub.Longitude = req.Longitude
	}

	report, err := h.service.CreateReport(r.Context(), sub)
	if err != nil {
		switch {
		case errors.Is(err, reportapp.ErrEmptyDescription):
			http.Error(w, "description is required", http.StatusBadRequest)
		case errors.Is(err, reports.ErrInvalidCoordinates):
			http.Error(w, "coordinates out of range", http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.recordAudit(r, "report.create", report.ID, map[string]string{"status": report.Status})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	// Citizens only see their own submissions; police and admins see all.
	var reporterID string
	if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RolePolice) {
		reporterID = auth.SubjectFromContext(r.Context())
	}
	list, err := h.service.ListReports(r.Context(), reporterID, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if list == nil {
		list = []reports.Report{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleSubroute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	parts := strings.Split(path, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleGet(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatus(w, r, parts[0])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.service.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, reports.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// A citizen may only read their own report. 404 rather than 403 so
	// report ids are not confirmed to other callers.
	if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RolePolice) &&
		report.ReporterID != auth.SubjectFromContext(r.Context()) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	report, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, reports.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, reports.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	h.recordAudit(r, "report.status", report.ID, map[string]string{"status": report.Status})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func parseCoordinate(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

func (h *Handler) recordAudit(r *http.Request, action, reportID string, meta map[string]string) {
	if h.auditLogger == nil {
		return
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		payload = nil
	}
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "report",
		ResourceID:   reportID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}
