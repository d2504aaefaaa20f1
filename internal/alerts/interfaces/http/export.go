package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alertapp "safewatch-cloud/internal/alerts/application"
	alerts "safewatch-cloud/internal/alerts/domain"
)

// BuildAlertPDF renders a minimal incident report PDF for one alert.
func BuildAlertPDF(alert *alerts.Alert) ([]byte, error) {
	if alert == nil {
		return nil, errors.New("alerts export: nil alert")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "SOS Incident Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Alert: %s", alert.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", alert.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Location: %.6f, %.6f", alert.Latitude, alert.Longitude))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Created: %s", alert.CreatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	if alert.ReporterID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Reporter: %s", alert.ReporterID))
		pdf.Ln(5)
	}
	if alert.EvidencePath != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Evidence: %s", alert.EvidencePath))
		pdf.Ln(5)
	}
	if alert.ResolvedAt != nil {
		pdf.Cell(0, 6, fmt.Sprintf("Resolved: %s", alert.ResolvedAt.UTC().Format(time.RFC3339)))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders an XLSX listing of alerts.
func BuildAlertsXLSX(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Status", "Latitude", "Longitude", "Reporter", "Evidence", "Created", "Resolved"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}

	for i, alert := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), alert.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), alert.Status)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), alert.Latitude)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), alert.Longitude)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), alert.ReporterID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), alert.EvidencePath)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), alert.CreatedAt.UTC().Format(time.RFC3339))
		if alert.ResolvedAt != nil {
			_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), alert.ResolvedAt.UTC().Format(time.RFC3339))
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportHandler serves alert exports.
type ExportHandler struct {
	service *alertapp.Service
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service *alertapp.Service) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("alerts export: nil service")
	}
	return &ExportHandler{service: service}, nil
}

// ServeHTTP handles GET /api/v1/exports/alerts.xlsx.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/exports/alerts.xlsx" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	from, to, err := parseTimeRange(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	list, err := h.service.ListAlerts(r.Context(), status, from, to)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data, err := BuildAlertsXLSX(list)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
	_, _ = w.Write(data)
}
