package reports

import (
	"errors"
	"time"
)

// Report statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
)

// ErrNotFound marks a missing report.
var ErrNotFound = errors.New("reports: not found")

// ErrInvalidTransition marks a disallowed status change.
var ErrInvalidTransition = errors.New("reports: invalid status transition")

// ErrInvalidCoordinates marks an out-of-range location.
var ErrInvalidCoordinates = errors.New("reports: coordinates out of range")

// ValidCoordinates checks latitude/longitude ranges.
func ValidCoordinates(latitude, longitude float64) bool {
	if latitude < -90 || latitude > 90 {
		return false
	}
	if longitude < -180 || longitude > 180 {
		return false
	}
	return true
}

// transitions is the closed set of allowed status changes.
var transitions = map[string]map[string]bool{
	StatusOpen: {
		StatusInProgress: true,
		StatusResolved:   true,
	},
	StatusInProgress: {
		StatusResolved: true,
	},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to string) bool {
	return transitions[from][to]
}

// ValidStatus reports whether value is a known status.
func ValidStatus(value string) bool {
	switch value {
	case StatusOpen, StatusInProgress, StatusResolved:
		return true
	default:
		return false
	}
}

// Report represents one non-emergency citizen submission.
type Report struct {
	ID          string     `json:"id"`
	ReporterID  string     `json:"reporter_id,omitempty"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude,omitempty"`
	Longitude   float64    `json:"longitude,omitempty"`
	Status      string     `json:"status"`
	PhotoPath   string     `json:"photo_path,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
