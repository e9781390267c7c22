package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("VENTASIMPLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set VENTASIMPLE_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("ventasimple-it-%d:", time.Now().UnixNano())
	s := New(addr, os.Getenv("VENTASIMPLE_TEST_REDIS_PASSWORD"), 0, prefix)
	t.Cleanup(func() {
		_ = s.client.Del(ctx, prefix+"products").Err()
		_ = s.Close()
	})

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	if _, ok, err := s.Get(ctx, "products"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%t err=%v", ok, err)
	}
	if err := s.Set(ctx, "products", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := s.Get(ctx, "products")
	if err != nil || !ok {
		t.Fatalf("expected stored key, got ok=%t err=%v", ok, err)
	}
	if string(value) != `[{"id":"p1"}]` {
		t.Fatalf("unexpected value %s", value)
	}
}
