package session

import (
	"errors"
	"sync"
)

// ControllerFactory builds a controller for a device.
type ControllerFactory func(deviceID string) (*Controller, error)

// Manager holds one controller per device so each device gets exactly
// one in-flight session.
type Manager struct {
	factory ControllerFactory

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewManager constructs a manager.
func NewManager(factory ControllerFactory) (*Manager, error) {
	if factory == nil {
		return nil, errors.New("session manager: nil factory")
	}
	return &Manager{
		factory:     factory,
		controllers: make(map[string]*Controller),
	}, nil
}

// Controller returns the controller for a device, creating it on first use.
func (m *Manager) Controller(deviceID string) (*Controller, error) {
	if m == nil {
		return nil, errors.New("session manager: nil manager")
	}
	if deviceID == "" {
		return nil, errors.New("session manager: empty device id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if controller, ok := m.controllers[deviceID]; ok {
		return controller, nil
	}
	controller, err := m.factory(deviceID)
	if err != nil {
		return nil, err
	}
	m.controllers[deviceID] = controller
	return controller, nil
}

// Close stops all controllers.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, controller := range m.controllers {
		controller.Close()
	}
}
