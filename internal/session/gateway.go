package session

import (
	"context"
	"fmt"
	"sync"

	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/evidence"
)

// Gateway adapts a remote device into the provider contracts. The device
// reports its own location and recorded clip with each request; the
// transport stages them here before driving the controller.
type Gateway struct {
	mu     sync.Mutex
	coords *alerts.Coordinates
	denied bool
	clip   *evidence.Media
}

// NewGateway constructs a gateway.
func NewGateway() *Gateway {
	return &Gateway{}
}

// SetLocation stages the device-reported coordinates.
func (g *Gateway) SetLocation(coords alerts.Coordinates) {
	g.mu.Lock()
	g.coords = &coords
	g.denied = false
	g.mu.Unlock()
}

// SetLocationDenied marks the location permission as denied.
func (g *Gateway) SetLocationDenied() {
	g.mu.Lock()
	g.coords = nil
	g.denied = true
	g.mu.Unlock()
}

// AttachClip stages recorded media for the next stop.
func (g *Gateway) AttachClip(clip *evidence.Media) {
	g.mu.Lock()
	g.clip = clip
	g.mu.Unlock()
}

// CurrentLocation implements LocationProvider.
func (g *Gateway) CurrentLocation(_ context.Context) (alerts.Coordinates, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.denied {
		return alerts.Coordinates{}, fmt.Errorf("%w: location", ErrPermissionDenied)
	}
	if g.coords == nil {
		return alerts.Coordinates{}, fmt.Errorf("%w: not reported", ErrLocationUnavailable)
	}
	return *g.coords, nil
}

// Start implements CaptureProvider. Recording happens on the device, so
// starting always succeeds server-side.
func (g *Gateway) Start(_ context.Context) error {
	return nil
}

// Stop implements CaptureProvider. It yields whatever clip the device
// attached; nil when the stop carried no media.
func (g *Gateway) Stop(_ context.Context) (*evidence.Media, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clip := g.clip
	g.clip = nil
	return clip, nil
}
