package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type entry struct {
	Path  string `json:"path"`
	Group bool   `json:"group"`
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	var got entry
	found, err := store.Get(ctx, "missing", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected miss for unknown key")
	}

	want := entry{Path: "/Exercise01/group7", Group: true}
	if err := store.Set(ctx, "alice/Exercise01", want); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	found, err = store.Get(ctx, "alice/Exercise01", &got)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || got != want {
		t.Errorf("got %+v (found=%v), want %+v", got, found, want)
	}

	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestLRUStore(t *testing.T) {
	exerciseStore(t, NewLRUStore(16, time.Minute))
}

func TestLRUStoreEvicts(t *testing.T) {
	store := NewLRUStore(1, time.Minute)
	ctx := context.Background()

	_ = store.Set(ctx, "a", 1)
	_ = store.Set(ctx, "b", 2)

	var v int
	if found, _ := store.Get(ctx, "a", &v); found {
		t.Error("oldest entry should have been evicted")
	}
	if found, _ := store.Get(ctx, "b", &v); !found || v != 2 {
		t.Errorf("expected b=2, got %d (found=%v)", v, found)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), mr.Addr(), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)

	if !mr.Exists("submitter:alice/Exercise01") {
		t.Error("expected key to be stored with prefix")
	}

	mr.FastForward(2 * time.Minute)
	var got entry
	if found, _ := store.Get(context.Background(), "alice/Exercise01", &got); found {
		t.Error("expected entry to expire")
	}
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisStore(context.Background(), addr, "", 0, time.Minute); err == nil {
		t.Fatal("expected connection error")
	}
}
