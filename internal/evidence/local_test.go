package evidence

import (
	"context"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	ctx := context.Background()

	if err := store.Write(ctx, "alert_a1_1700000000.mp4", []byte("clip"), "video/mp4"); err != nil {
		t.Fatalf("write: %v", err)
	}
	exists, err := store.Exists(ctx, "alert_a1_1700000000.mp4")
	if err != nil || !exists {
		t.Fatalf("expected object to exist, got %v %v", exists, err)
	}
	data, err := store.Read(ctx, "alert_a1_1700000000.mp4")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "clip" {
		t.Fatalf("unexpected data %q", data)
	}

	exists, err = store.Exists(ctx, "missing.mp4")
	if err != nil || exists {
		t.Fatalf("expected missing object, got %v %v", exists, err)
	}
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	if err := store.Write(context.Background(), "../escape.mp4", []byte("x"), ""); err == nil {
		t.Fatal("expected error for traversal name")
	}
}
