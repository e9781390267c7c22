package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestKVUpsertOverwritesValue(t *testing.T) {
	databaseURL := os.Getenv("VENTASIMPLE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set VENTASIMPLE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key := fmt.Sprintf("kv-it-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
		_ = s.Close()
	})

	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%t err=%v", ok, err)
	}

	if err := s.Set(ctx, key, []byte(`[{"id":"p1","stock":10}]`)); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := s.Set(ctx, key, []byte(`[{"id":"p1","stock":7}]`)); err != nil {
		t.Fatalf("second set: %v", err)
	}

	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%t err=%v", ok, err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 1 || rows[0]["stock"] != float64(7) {
		t.Fatalf("expected overwritten stock 7, got %v", rows)
	}
}
