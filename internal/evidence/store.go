package evidence

import "context"

// Media is recorded evidence read platform-safely into memory as raw bytes.
// A byte slice is the only portable handoff: fetching a local file reference
// over a network-style URL is not.
type Media struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store is durable blob storage for recorded evidence.
type Store interface {
	Write(ctx context.Context, name string, data []byte, contentType string) error
	Read(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) (bool, error)
}
