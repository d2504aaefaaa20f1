package evidence

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"safewatch-cloud/internal/observability/metrics"
)

// Clock provides time for object naming.
type Clock interface {
	Now() time.Time
}

// Uploader copies recorded media into the store under a collision-free name
// derived from the target id and the current time.
type Uploader struct {
	store Store
	clock Clock
}

// UploaderOption customizes the uploader.
type UploaderOption func(*Uploader)

// WithClock overrides the default clock.
func WithClock(clock Clock) UploaderOption {
	return func(u *Uploader) {
		if clock != nil {
			u.clock = clock
		}
	}
}

// NewUploader constructs an uploader.
func NewUploader(store Store, opts ...UploaderOption) (*Uploader, error) {
	if store == nil {
		return nil, errors.New("evidence: nil store")
	}
	uploader := &Uploader{store: store, clock: systemClock{}}
	for _, opt := range opts {
		opt(uploader)
	}
	return uploader, nil
}

// Upload stores the media and returns the durable object path.
func (u *Uploader) Upload(ctx context.Context, prefix, id string, media Media) (string, error) {
	if u == nil || u.store == nil {
		return "", errors.New("evidence: nil uploader")
	}
	if id == "" {
		return "", errors.New("evidence: empty target id")
	}
	if len(media.Data) == 0 {
		return "", errors.New("evidence: empty media")
	}
	name := ObjectName(prefix, id, media, u.clock.Now())
	start := u.clock.Now()
	if err := u.store.Write(ctx, name, media.Data, contentTypeOf(media)); err != nil {
		metrics.ObserveEvidenceUpload("error", time.Since(start))
		return "", err
	}
	metrics.ObserveEvidenceUpload("success", time.Since(start))
	return name, nil
}

// ObjectName derives a unique object name: <prefix>_<id>_<unix-timestamp><ext>.
// The time-based suffix keeps repeated uploads for one target from colliding.
func ObjectName(prefix, id string, media Media, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d%s", prefix, id, at.UTC().Unix(), extensionOf(media))
}

func extensionOf(media Media) string {
	if ext := filepath.Ext(media.Name); ext != "" {
		return strings.ToLower(ext)
	}
	switch media.ContentType {
	case "video/mp4":
		return ".mp4"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ".bin"
	}
}

func contentTypeOf(media Media) string {
	if media.ContentType != "" {
		return media.ContentType
	}
	switch strings.ToLower(filepath.Ext(media.Name)) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
