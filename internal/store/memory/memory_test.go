package memory

import (
	"context"
	"testing"

	"ventasimple/backend/internal/store"
)

func TestGetRawMissingKey(t *testing.T) {
	ctx := context.Background()
	kv := New()

	if got := store.GetRaw(ctx, kv, "missing"); got != nil {
		t.Fatalf("expected nil for missing key, got %q", got)
	}
	if err := kv.Set(ctx, "empty", nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := store.GetRaw(ctx, kv, "empty"); got != nil {
		t.Fatalf("expected nil for empty value, got %q", got)
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := New()

	if err := store.SetJSON(ctx, kv, store.KeyProducts, map[string]int{"a": 1}); err != nil {
		t.Fatalf("set json: %v", err)
	}
	got := store.GetRaw(ctx, kv, store.KeyProducts)
	if string(got) != `{"a":1}` {
		t.Fatalf("expected round-tripped value, got %q", got)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	kv := New()
	_ = kv.Set(ctx, "k", []byte("abc"))

	value, _, _ := kv.Get(ctx, "k")
	value[0] = 'z'

	again, _, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("stored value was mutated through returned slice: %q", again)
	}
}
