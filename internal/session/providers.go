package session

import (
	"context"

	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/evidence"
)

// LocationProvider supplies current coordinates on demand. It may fail
// or report a denied permission; the controller handles both.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (alerts.Coordinates, error)
}

// CaptureProvider controls a media recording. Start begins a recording;
// Stop ends it and yields the recorded media. Stop may return nil media
// when the recording produced nothing.
type CaptureProvider interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (*evidence.Media, error)
}

// AlertOpener creates alert rows.
type AlertOpener interface {
	OpenAlert(ctx context.Context, reporterID string, coords alerts.Coordinates) (*alerts.Alert, error)
}

// AlertResolver finalizes alert rows.
type AlertResolver interface {
	ResolveAlert(ctx context.Context, id, evidencePath string) (*alerts.Alert, error)
}

// EvidenceUploader stores recorded media and returns its object name.
type EvidenceUploader interface {
	Upload(ctx context.Context, prefix, id string, media evidence.Media) (string, error)
}
