package syncbus

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	ch, cancel := s.Watch("k")
	defer cancel()

	if err := s.Put(ctx, "k", []byte("one")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("two")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "two" {
		t.Fatalf("Get = %q, want whole-value replacement %q", got, "two")
	}

	select {
	case v := <-ch:
		if string(v) != "two" {
			t.Fatalf("watch delivered %q, want latest %q", v, "two")
		}
	default:
		t.Fatal("watch delivered nothing")
	}

	if err := s.Put(ctx, "other", []byte("x")); err != nil {
		t.Fatalf("Put other: %v", err)
	}
	select {
	case v := <-ch:
		t.Fatalf("watch on k delivered write to other key: %q", v)
	default:
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sync", "sync.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	testStore(t, s)
}

func TestSQLiteStore_SharedBetweenHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.db")
	writer, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()
	reader, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	ctx := context.Background()
	if err := writer.Put(ctx, DefaultKey, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := reader.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("reader saw %q", got)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWatchCancelAfterClose(t *testing.T) {
	s := NewMemoryStore()
	_, cancel := s.Watch("k")
	s.Close()
	cancel()
}
