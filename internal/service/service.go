package service

import (
	"context"
	"log"
	"sync"
	"time"

	"ventasimple/backend/internal/domain"
	"ventasimple/backend/internal/sheets"
)

// Gateway is the write side of the remote spreadsheet.
type Gateway interface {
	SendSale(ctx context.Context, payload sheets.SalePayload) error
	SendDueSale(ctx context.Context, payload sheets.SalePayload) error
	SendDueClear(ctx context.Context, saleID string) error
	SendDueDelete(ctx context.Context, saleID string) error
	SendProductChange(ctx context.Context, payload sheets.ProductChangePayload) error
}

// Snapshotter is the read side of the remote spreadsheet.
type Snapshotter interface {
	FetchProducts(ctx context.Context) ([]domain.Product, error)
	FetchSales(ctx context.Context) ([]domain.Sale, error)
}

// Dispatcher runs remote pushes in the background. Callers never wait for
// them; a failed push is logged and forgotten.
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{timeout: timeout}
}

func (d *Dispatcher) Go(label string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Printf("[sync] WARN: %s failed: %v", label, err)
		}
	}()
}

// Wait blocks until every push started so far has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
