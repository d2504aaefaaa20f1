package realtime

import (
	"context"
	"encoding/json"
	"log"

	alertapp "safewatch-cloud/internal/alerts/application"
	"safewatch-cloud/internal/observability/metrics"
)

// Publisher forwards alert lifecycle events onto the change channel.
// Publishing is best effort: a broken channel is logged and dropped so
// the write path never stalls on the realtime fanout.
type Publisher struct {
	channel Channel
	logger  *log.Logger
}

// NewPublisher constructs a publisher.
func NewPublisher(channel Channel, logger *log.Logger) *Publisher {
	if channel == nil {
		return nil
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{channel: channel, logger: logger}
}

// Notify implements AlertNotifier.
func (p *Publisher) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if p == nil || p.channel == nil {
		return
	}
	payload, err := json.Marshal(ChangeEvent{Type: event.Type, AlertID: event.Alert.ID})
	if err != nil {
		p.logger.Printf("realtime publisher: marshal event for alert %s: %v", event.Alert.ID, err)
		return
	}
	if err := p.channel.Publish(ctx, payload); err != nil {
		p.logger.Printf("realtime publisher: publish alert %s: %v", event.Alert.ID, err)
		return
	}
	metrics.IncRealtimeEvent("published")
}
