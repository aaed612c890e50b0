package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"reefcore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "reports/r1/a.json", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"record": "r1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "reports/r1/a.json", bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := store.Get(ctx, "reports/r1/a.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "hello" || got.ETag != info.ETag || got.Metadata["record"] != "r1" {
		t.Fatalf("unexpected get %+v %q", got, b)
	}
	if _, err := store.Put(ctx, "reports/r2/b.json", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := store.List(ctx, "reports/r1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "reports/r1/a.json" {
		t.Fatalf("unexpected list %+v", list)
	}
	all, _ := store.List(ctx, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 blobs, got %d", len(all))
	}
	ok, err := store.Delete(ctx, "reports/r1/a.json")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "reports", "r1", "a.json.meta")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("sidecar should be removed: %v", err)
	}
	ok, err = store.Delete(ctx, "reports/r1/a.json")
	if err != nil || ok {
		t.Fatalf("expected missing delete, got %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "reports/r1/a.json"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	for _, bad := range []string{"", "  ", "/abs", "a/../b", "..", "x.meta"} {
		if _, err := sanitizeKey(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	got, err := sanitizeKey("reports//r1/./a.json")
	if err != nil || got != "reports/r1/a.json" {
		t.Fatalf("unexpected clean key %q %v", got, err)
	}
	if _, err := sanitizeKey("reports/v1..2.json"); err != nil {
		t.Fatalf("dots inside a segment are allowed: %v", err)
	}
}

func TestCorruptSidecar(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(store.Root(), "k.meta"), []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := store.List(ctx, ""); err == nil {
		t.Fatalf("expected list decode error")
	}
}

func TestCancelledPut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTempStore(t).Put(ctx, "k", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
