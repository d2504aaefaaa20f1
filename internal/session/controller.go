package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"safewatch-cloud/internal/evidence"
	"safewatch-cloud/internal/observability/metrics"
)

// State is a session controller state.
type State string

// Controller states.
const (
	StateIdle       State = "idle"
	StateActivating State = "activating"
	StateActive     State = "active"
	StateUploading  State = "uploading"
	StateDone       State = "done"
)

// Snapshot is a point-in-time projection of the controller for clients.
type Snapshot struct {
	State      State         `json:"state"`
	AlertID    string        `json:"alert_id,omitempty"`
	StartedAt  time.Time     `json:"started_at,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	StatusText string        `json:"status_text"`
	LastError  string        `json:"last_error,omitempty"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Controller sequences one SOS session per device: location fetch, alert
// insert, recording, evidence upload, alert resolution. At most one
// session is in flight at a time; re-activation while busy is a no-op.
type Controller struct {
	opener   AlertOpener
	resolver AlertResolver
	uploader EvidenceUploader
	location LocationProvider
	capture  CaptureProvider
	cfg      Config
	clock    Clock
	logger   *log.Logger

	mu          sync.Mutex
	state       State
	alertID     string
	startedAt   time.Time
	lastErr     error
	capturing   bool
	recordTimer *time.Timer
	resetTimer  *time.Timer
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithClock overrides the default clock.
func WithClock(clock Clock) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCapture attaches a media capture provider. Without one, sessions
// run location-and-alert only.
func WithCapture(capture CaptureProvider) ControllerOption {
	return func(c *Controller) {
		c.capture = capture
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController constructs a controller.
func NewController(opener AlertOpener, resolver AlertResolver, uploader EvidenceUploader, location LocationProvider, cfg Config, opts ...ControllerOption) (*Controller, error) {
	if opener == nil || resolver == nil {
		return nil, errors.New("session controller: nil alert service")
	}
	if location == nil {
		return nil, errors.New("session controller: nil location provider")
	}
	c := &Controller{
		opener:   opener,
		resolver: resolver,
		uploader: uploader,
		location: location,
		cfg:      cfg,
		clock:    systemClock{},
		logger:   log.Default(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Activate starts a session: fetch location, insert the alert row, then
// start recording when possible. Idempotent against re-entry; pressing
// the trigger while a session is running changes nothing.
func (c *Controller) Activate(ctx context.Context, reporterID string) (Snapshot, error) {
	if c == nil {
		return Snapshot{}, errors.New("session controller: nil controller")
	}

	c.mu.Lock()
	if c.state != StateIdle {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		metrics.IncSOSActivation("rejected")
		return snap, ErrSessionInFlight
	}
	if c.cfg.RequireAuth && reporterID == "" {
		c.mu.Unlock()
		metrics.IncSOSActivation("rejected")
		return c.Snapshot(), ErrPermissionDenied
	}
	c.lastErr = nil
	c.setStateLocked(StateActivating)
	c.mu.Unlock()

	coords, err := c.location.CurrentLocation(ctx)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
		if errors.Is(err, ErrPermissionDenied) {
			wrapped = fmt.Errorf("%w: location", ErrPermissionDenied)
		}
		return c.abortActivation(wrapped), wrapped
	}

	alert, err := c.opener.OpenAlert(ctx, reporterID, coords)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		return c.abortActivation(wrapped), wrapped
	}

	c.mu.Lock()
	c.alertID = alert.ID
	c.startedAt = c.clock.Now().UTC()
	c.setStateLocked(StateActive)
	c.mu.Unlock()
	metrics.IncSOSActivation("success")

	c.startCapture(ctx)
	return c.Snapshot(), nil
}

// Deactivate stops the session. With a running recording the controller
// moves to uploading and finishes asynchronously; without one it resolves
// the alert immediately and completes.
func (c *Controller) Deactivate(ctx context.Context) (Snapshot, error) {
	if c == nil {
		return Snapshot{}, errors.New("session controller: nil controller")
	}

	c.mu.Lock()
	if c.state != StateActive {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, ErrNoActiveSession
	}
	alertID := c.alertID
	capturing := c.capturing
	c.capturing = false
	if c.recordTimer != nil {
		c.recordTimer.Stop()
		c.recordTimer = nil
	}

	if !capturing {
		// No recording to collect; resolve without evidence and skip
		// straight to done.
		c.setStateLocked(StateDone)
		c.mu.Unlock()
		var failure error
		if _, err := c.resolver.ResolveAlert(ctx, alertID, ""); err != nil {
			failure = fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
			c.logger.Printf("session: resolve alert %s without evidence: %v", alertID, err)
		}
		snap := c.complete(failure)
		return snap, failure
	}

	c.setStateLocked(StateUploading)
	c.mu.Unlock()

	go c.finishCapture(alertID)
	return c.Snapshot(), nil
}

// Snapshot returns the current projection.
func (c *Controller) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{State: StateIdle, StatusText: statusText(StateIdle)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops pending timers.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recordTimer != nil {
		c.recordTimer.Stop()
		c.recordTimer = nil
	}
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *Controller) startCapture(ctx context.Context) {
	if c.capture == nil {
		return
	}
	if err := c.capture.Start(ctx); err != nil {
		// Evidence is optional; the alert stands without it.
		c.logger.Printf("session: start capture: %v", err)
		c.mu.Lock()
		c.lastErr = fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.capturing = true
	if c.cfg.FixedRecordingDuration > 0 {
		c.recordTimer = time.AfterFunc(c.cfg.FixedRecordingDuration, func() {
			if _, err := c.Deactivate(context.Background()); err != nil && !errors.Is(err, ErrNoActiveSession) {
				c.logger.Printf("session: timed stop: %v", err)
			}
		})
	}
	c.mu.Unlock()
}

// finishCapture is the async continuation of a stop: collect the recorded
// media, upload it, then resolve the alert. Upload is always attempted
// before the row update. A failed upload leaves the alert active without
// evidence; the session still completes.
func (c *Controller) finishCapture(alertID string) {
	ctx := context.Background()

	media, err := c.capture.Stop(ctx)
	if err != nil || media == nil || len(media.Data) == 0 {
		if err != nil {
			c.logger.Printf("session: stop capture for alert %s: %v", alertID, err)
		}
		var failure error
		if _, rerr := c.resolver.ResolveAlert(ctx, alertID, ""); rerr != nil {
			failure = fmt.Errorf("%w: %v", ErrPersistenceFailure, rerr)
			c.logger.Printf("session: resolve alert %s without evidence: %v", alertID, rerr)
		}
		c.complete(failure)
		return
	}

	path, err := c.uploadEvidence(ctx, alertID, *media)
	if err != nil {
		failure := fmt.Errorf("%w: %v", ErrUploadFailure, err)
		c.logger.Printf("session: upload evidence for alert %s: %v", alertID, err)
		c.complete(failure)
		return
	}

	if _, err := c.resolver.ResolveAlert(ctx, alertID, path); err != nil {
		failure := fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		c.logger.Printf("session: resolve alert %s: %v", alertID, err)
		c.complete(failure)
		return
	}
	c.complete(nil)
}

func (c *Controller) uploadEvidence(ctx context.Context, alertID string, media evidence.Media) (string, error) {
	if c.uploader == nil {
		return "", errors.New("no uploader configured")
	}
	return c.uploader.Upload(ctx, "alert", alertID, media)
}

func (c *Controller) abortActivation(cause error) Snapshot {
	metrics.IncSOSActivation("error")
	c.mu.Lock()
	c.lastErr = cause
	c.alertID = ""
	c.startedAt = time.Time{}
	c.setStateLocked(StateIdle)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	return snap
}

// complete moves the session to done and schedules the reset to idle.
func (c *Controller) complete(failure error) Snapshot {
	c.mu.Lock()
	if failure != nil {
		c.lastErr = failure
	}
	c.setStateLocked(StateDone)
	snap := c.snapshotLocked()

	if c.cfg.ConfirmHold > 0 {
		c.resetTimer = time.AfterFunc(c.cfg.ConfirmHold, c.reset)
		c.mu.Unlock()
		return snap
	}
	c.resetLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()
	return snap
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()
}

func (c *Controller) resetLocked() {
	if c.state == StateIdle {
		return
	}
	c.alertID = ""
	c.startedAt = time.Time{}
	c.capturing = false
	c.resetTimer = nil
	c.setStateLocked(StateIdle)
}

func (c *Controller) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	metrics.IncSessionTransition(string(state))
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:      c.state,
		AlertID:    c.alertID,
		StartedAt:  c.startedAt,
		StatusText: statusText(c.state),
	}
	if !c.startedAt.IsZero() && (c.state == StateActive || c.state == StateUploading) {
		snap.Elapsed = c.clock.Now().UTC().Sub(c.startedAt)
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

func statusText(state State) string {
	switch state {
	case StateActivating:
		return "Sending SOS..."
	case StateActive:
		return "SOS active"
	case StateUploading:
		return "Saving evidence..."
	case StateDone:
		return "Help is on the way"
	default:
		return "Ready"
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
