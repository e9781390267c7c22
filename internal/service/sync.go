package service

import (
	"context"
	"errors"
	"log"

	"ventasimple/backend/internal/sheets"
)

// Syncer pulls remote snapshots into the stores. A non-empty snapshot
// replaces local state outright; there is no merge.
type Syncer struct {
	catalog *Catalog
	ledger  *Ledger
	remote  Snapshotter
}

func NewSyncer(catalog *Catalog, ledger *Ledger, remote Snapshotter) *Syncer {
	return &Syncer{catalog: catalog, ledger: ledger, remote: remote}
}

// Startup loads products from the KV store, then takes sales from the
// remote sheet when it has any, else from the local copy.
func (s *Syncer) Startup(ctx context.Context) {
	products := s.catalog.Load(ctx)
	log.Printf("[sync] loaded %d products from local store", products)

	applied, err := s.PullSales(ctx)
	switch {
	case err != nil && !errors.Is(err, sheets.ErrNotConfigured):
		log.Printf("[sync] WARN: remote sales unavailable: %v", err)
	case applied > 0:
		log.Printf("[sync] adopted %d sales from remote", applied)
		return
	}

	local := s.ledger.LoadLocal(ctx)
	s.ledger.SetAll(ctx, local)
	log.Printf("[sync] loaded %d sales from local store", len(local))
}

// PullProducts replaces the catalog with the remote snapshot. An empty
// snapshot leaves the catalog alone and reports zero.
func (s *Syncer) PullProducts(ctx context.Context) (int, error) {
	products, err := s.remote.FetchProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		return 0, nil
	}
	s.catalog.SetAll(ctx, products)
	return len(products), nil
}

func (s *Syncer) PullSales(ctx context.Context) (int, error) {
	sales, err := s.remote.FetchSales(ctx)
	if err != nil {
		return 0, err
	}
	if len(sales) == 0 {
		return 0, nil
	}
	s.ledger.SetAll(ctx, sales)
	return len(sales), nil
}

// PullAll runs both pulls and logs the outcome. Used by the scheduler.
func (s *Syncer) PullAll(ctx context.Context) {
	if n, err := s.PullProducts(ctx); err != nil {
		if !errors.Is(err, sheets.ErrNotConfigured) {
			log.Printf("[sync] WARN: product pull failed: %v", err)
		}
	} else {
		log.Printf("[sync] product pull applied %d", n)
	}
	if n, err := s.PullSales(ctx); err != nil {
		if !errors.Is(err, sheets.ErrNotConfigured) {
			log.Printf("[sync] WARN: sales pull failed: %v", err)
		}
	} else {
		log.Printf("[sync] sales pull applied %d", n)
	}
}
