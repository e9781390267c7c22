package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")

	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrSaleNotFound    = fmt.Errorf("sale %w", ErrNotFound)
	ErrSaleAlreadyPaid = fmt.Errorf("%w: sale already paid", ErrConflict)
)

const (
	KeyProducts = "venta_simple_products"
	KeySales    = "venta_simple_sales"
)

// KV is a string-keyed blob store. Values are JSON documents.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// GetRaw returns the stored document for key, or nil when it is missing or
// unreadable. Read failures are logged rather than returned.
func GetRaw(ctx context.Context, kv KV, key string) []byte {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.Printf("[store] WARN: read %s failed: %v", key, err)
		return nil
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	return raw
}

func SetJSON(ctx context.Context, kv KV, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return kv.Set(ctx, key, payload)
}
