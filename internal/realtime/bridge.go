package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"sync"

	alertapp "safewatch-cloud/internal/alerts/application"
	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/observability/metrics"
)

// AlertReader loads current alert state.
type AlertReader interface {
	GetAlert(ctx context.Context, id string) (*alerts.Alert, error)
}

// Bridge consumes change events and maintains a local view of alerts.
// Every event triggers a fresh read of the row it names, so duplicated or
// reordered deliveries all converge on the same stored state. Refreshed
// alerts fan out to the configured sinks.
type Bridge struct {
	channel Channel
	reader  AlertReader
	sinks   []alertapp.AlertNotifier
	logger  *log.Logger

	mu    sync.RWMutex
	cache map[string]alerts.Alert
}

// NewBridge constructs a bridge.
func NewBridge(channel Channel, reader AlertReader, logger *log.Logger, sinks ...alertapp.AlertNotifier) (*Bridge, error) {
	if channel == nil {
		return nil, errors.New("realtime bridge: nil channel")
	}
	if reader == nil {
		return nil, errors.New("realtime bridge: nil reader")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bridge{
		channel: channel,
		reader:  reader,
		sinks:   sinks,
		logger:  logger,
		cache:   make(map[string]alerts.Alert),
	}, nil
}

// Run consumes the channel until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if b == nil {
		return errors.New("realtime bridge: nil bridge")
	}
	messages, cancel, err := b.channel.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-messages:
			if !ok {
				return nil
			}
			b.handle(ctx, payload)
		}
	}
}

func (b *Bridge) handle(ctx context.Context, payload []byte) {
	var event ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		b.logger.Printf("realtime bridge: decode event: %v", err)
		return
	}
	if event.AlertID == "" {
		return
	}
	metrics.IncRealtimeEvent("received")

	alert, err := b.reader.GetAlert(ctx, event.AlertID)
	if err != nil {
		if errors.Is(err, alerts.ErrNotFound) {
			b.evict(event.AlertID)
			return
		}
		b.logger.Printf("realtime bridge: refresh alert %s: %v", event.AlertID, err)
		return
	}

	b.mu.Lock()
	_, known := b.cache[alert.ID]
	b.cache[alert.ID] = *alert
	b.mu.Unlock()

	eventType := event.Type
	if eventType == "" {
		if known {
			eventType = EventUpdated
		} else {
			eventType = EventCreated
		}
	}
	for _, sink := range b.sinks {
		if sink != nil {
			sink.Notify(ctx, alertapp.AlertEvent{Type: eventType, Alert: *alert})
		}
	}
}

func (b *Bridge) evict(id string) {
	b.mu.Lock()
	delete(b.cache, id)
	b.mu.Unlock()
}

// Alerts returns the current view, newest first.
func (b *Bridge) Alerts() []alerts.Alert {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	out := make([]alerts.Alert, 0, len(b.cache))
	for _, alert := range b.cache {
		out = append(out, alert)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
