package devices

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidDevice marks a registration with missing fields.
var ErrInvalidDevice = errors.New("devices: invalid registration")

// Device is a registered push target.
type Device struct {
	DeviceID  string    `json:"device_id"`
	PushToken string    `json:"push_token"`
	Platform  string    `json:"platform,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required fields.
func (d Device) Validate() error {
	if strings.TrimSpace(d.DeviceID) == "" {
		return ErrInvalidDevice
	}
	if strings.TrimSpace(d.PushToken) == "" {
		return ErrInvalidDevice
	}
	return nil
}
