package s3

import (
	"context"
	"errors"
	"flightcore/internal/blob/core"
	"io"
	"strings"
	"testing"
)

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	store := newMockStore(t, bucket, "")
	if store.Driver() != core.DriverS3 {
		t.Fatalf("unexpected driver %s", store.Driver())
	}

	info, err := store.Put(ctx, "aircrafts.txt", strings.NewReader("9M-AAA"), core.PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "aircrafts.txt" || info.Size != 6 || info.ETag != "etag" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "aircrafts.txt", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := store.Put(ctx, "aircrafts.txt", strings.NewReader("9M-BBB;"), core.PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, rc, err := store.Get(ctx, "aircrafts.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "9M-BBB;" || got.Key != "aircrafts.txt" {
		t.Fatalf("unexpected body %q info %+v", body, got)
	}

	if _, err := store.Put(ctx, "backups/1.zst", strings.NewReader("z"), core.PutOptions{}); err != nil {
		t.Fatalf("put backup: %v", err)
	}
	list, err := store.List(ctx, "backups/")
	if err != nil || len(list) != 1 || list[0].Key != "backups/1.zst" {
		t.Fatalf("unexpected list %+v err %v", list, err)
	}

	existed, err := store.Delete(ctx, "aircrafts.txt")
	if err != nil || !existed {
		t.Fatalf("expected delete to report existing object, got %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, "aircrafts.txt")
	if err != nil || existed {
		t.Fatalf("expected second delete to report missing object, got %v %v", existed, err)
	}
}

func TestStoreNotFoundMapping(t *testing.T) {
	ctx := context.Background()
	store := newMockStore(t, newFakeBucket(), "")
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("head: expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()
	bucket := newFakeBucket()
	store := newMockStore(t, bucket, "flightcore/")
	if _, err := store.Put(ctx, "flights.txt", strings.NewReader("MH-100"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	bucket.mu.Lock()
	_, stored := bucket.state["flightcore/flights.txt"]
	bucket.mu.Unlock()
	if !stored {
		t.Fatalf("expected object under prefix, state %v", bucket.state)
	}
	list, err := store.List(ctx, "")
	if err != nil || len(list) != 1 || list[0].Key != "flights.txt" {
		t.Fatalf("expected prefix stripped from listed keys, got %+v err %v", list, err)
	}
}
