package alerts

import (
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

// ErrNotFound indicates a missing alert record.
var ErrNotFound = errors.New("alert: not found")

// Coordinates is a latitude/longitude pair captured once at activation time.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks coordinate ranges.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return errors.New("alert: latitude out of range")
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return errors.New("alert: longitude out of range")
	}
	return nil
}

// Alert represents one SOS incident. It is visible to dashboard subscribers the
// instant it is inserted with active status and no evidence path; a still-recording
// alert is a valid, actionable entity.
type Alert struct {
	ID           string     `json:"id"`
	ReporterID   string     `json:"reporter_id,omitempty"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Status       string     `json:"status"`
	EvidencePath string     `json:"evidence_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// Coordinates returns the alert's captured location.
func (a Alert) Coordinates() Coordinates {
	return Coordinates{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Open reports whether the alert still needs attention.
func (a Alert) Open() bool {
	return a.Status == StatusActive
}
