package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	alertapp "safewatch-cloud/internal/alerts/application"
	alerts "safewatch-cloud/internal/alerts/domain"
	"safewatch-cloud/internal/observability/metrics"
)

// TokenReader loads registered push tokens.
type TokenReader interface {
	ListTokens(ctx context.Context) ([]string, error)
}

// Clock provides time for deduplication.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// PushNotifier relays newly opened alerts to a push gateway. Delivery is
// fire and forget: a failed or slow gateway never surfaces to the caller.
type PushNotifier struct {
	tokens         TokenReader
	channel        Channel
	template       *Template
	logger         *log.Logger
	clock          Clock
	mu             sync.Mutex
	sent           map[string]sendRecord
	dedupeWindow   time.Duration
	requestTimeout time.Duration
	wg             sync.WaitGroup
}

// Option configures the notifier.
type Option func(*PushNotifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *PushNotifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout overrides the default delivery timeout.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *PushNotifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *PushNotifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *PushNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewPushNotifier constructs a push notifier.
func NewPushNotifier(tokens TokenReader, channel Channel, template *Template, opts ...Option) (*PushNotifier, error) {
	if tokens == nil {
		return nil, errors.New("push notifier: nil token reader")
	}
	if channel == nil {
		return nil, errors.New("push notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &PushNotifier{
		tokens:         tokens,
		channel:        channel,
		template:       template,
		logger:         log.Default(),
		clock:          systemClock{},
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier. Only newly created alerts fan out as
// push notifications; updates stay on the realtime channel.
func (n *PushNotifier) Notify(_ context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	if event.Type != alertapp.EventCreated {
		return
	}
	alert := event.Alert
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.deliver(alert)
	}()
}

// Close waits for in-flight deliveries to finish.
func (n *PushNotifier) Close() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *PushNotifier) deliver(alert alerts.Alert) {
	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	tokens, err := n.tokens.ListTokens(ctx)
	if err != nil {
		n.logger.Printf("push notifier: list tokens for alert %s: %v", alert.ID, err)
		metrics.IncPushDelivery("error")
		return
	}
	if len(tokens) == 0 {
		metrics.IncPushDelivery("skipped")
		return
	}

	body, err := n.template.Render(TemplateData{
		AlertID:   alert.ID,
		Latitude:  fmt.Sprintf("%.4f", alert.Latitude),
		Longitude: fmt.Sprintf("%.4f", alert.Longitude),
		Time:      alert.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		n.logger.Printf("push notifier: render alert %s: %v", alert.ID, err)
		metrics.IncPushDelivery("error")
		return
	}
	if !n.shouldSend(alert.ID, body) {
		metrics.IncPushDelivery("skipped")
		return
	}

	msg := PushMessage{
		Tokens:    tokens,
		Title:     "SOS Alert",
		Body:      body,
		AlertID:   alert.ID,
		Latitude:  alert.Latitude,
		Longitude: alert.Longitude,
	}
	if err := n.channel.Send(ctx, msg); err != nil {
		n.logger.Printf("push notifier: deliver alert %s: %v", alert.ID, err)
		metrics.IncPushDelivery("error")
		return
	}
	n.markSent(alert.ID, body)
	metrics.IncPushDelivery("success")
}

func (n *PushNotifier) shouldSend(alertID, content string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[alertID]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *PushNotifier) markSent(alertID, content string) {
	n.mu.Lock()
	n.sent[alertID] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
