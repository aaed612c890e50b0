package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"reefcore/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"record": "r1"}
	if _, err := s.Put(ctx, "reports/r1/a", bytes.NewReader([]byte("abc")), core.PutOptions{Metadata: md}); err != nil {
		t.Fatalf("put: %v", err)
	}
	md["record"] = "mutated"
	if _, err := s.Put(ctx, "reports/r1/a", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	info, rc, err := s.Get(ctx, "reports/r1/a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "abc" || info.Metadata["record"] != "r1" {
		t.Fatalf("stored copy should be isolated: %+v %q", info, b)
	}
	if _, err := s.Put(ctx, "reports/r2/a", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, _ := s.List(ctx, "reports/r1/")
	if len(list) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "reports/r1/a"); !ok {
		t.Fatalf("expected delete to report existing blob")
	}
	if _, _, err := s.Get(ctx, "reports/r1/a"); !errors.Is(err, core.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if _, err := s.Put(ctx, "", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}
