package realtime

import "context"

// Channel is a pub/sub transport for change events.
type Channel interface {
	Publish(ctx context.Context, payload []byte) error
	// Subscribe returns a receive channel and a cancel func. The receive
	// channel closes after cancel is called.
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
}
