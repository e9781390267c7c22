package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"ventasimple/backend/internal/domain"
	"ventasimple/backend/internal/sheets"
	"ventasimple/backend/internal/store"
	"ventasimple/backend/internal/xid"
)

// Ledger owns the sales list. Creating a sale takes stock from the catalog
// and removing one gives it back. Paid sales go to the sales sheet; anything
// else is tracked on the receivables sheet.
type Ledger struct {
	mu       sync.RWMutex
	sales    []domain.Sale
	catalog  *Catalog
	kv       store.KV
	gateway  Gateway
	dispatch *Dispatcher
	now      func() time.Time
}

func NewLedger(catalog *Catalog, kv store.KV, gateway Gateway, dispatch *Dispatcher) *Ledger {
	return &Ledger{
		sales:    []domain.Sale{},
		catalog:  catalog,
		kv:       kv,
		gateway:  gateway,
		dispatch: dispatch,
		now:      time.Now,
	}
}

// LoadLocal decodes the persisted sales list, folding legacy values.
func (l *Ledger) LoadLocal(ctx context.Context) []domain.Sale {
	raw := store.GetRaw(ctx, l.kv, store.KeySales)
	if raw == nil {
		return []domain.Sale{}
	}
	records, err := domain.DecodeRecords(raw)
	if err != nil {
		log.Printf("[ledger] WARN: persisted sales unreadable: %v", err)
		return []domain.Sale{}
	}
	now := l.now()
	sales := make([]domain.Sale, 0, len(records))
	for _, record := range records {
		sales = append(sales, domain.MigrateSale(record, now))
	}
	return sales
}

func (l *Ledger) List() []domain.Sale {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Sale, 0, len(l.sales))
	for _, s := range l.sales {
		out = append(out, s.Clone())
	}
	return out
}

func (l *Ledger) GetByID(id string) (domain.Sale, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if i := l.indexLocked(id); i >= 0 {
		return l.sales[i].Clone(), true
	}
	return domain.Sale{}, false
}

// Add records a sale. It fails with ErrProductNotFound or
// ErrInsufficientStock before touching any state.
func (l *Ledger) Add(ctx context.Context, in domain.NewSale) (domain.Sale, error) {
	adjustments := make([]domain.StockAdjustment, 0, len(in.Items))
	for _, item := range in.Items {
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: item.ProductID, Qty: item.Quantity})
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = l.now()
	}
	sale := domain.Sale{
		ID:            xid.New(""),
		Items:         append([]domain.SaleItem{}, in.Items...),
		Total:         in.Total,
		Department:    in.Department,
		PaymentStatus: in.PaymentStatus,
		PaymentType:   in.PaymentType,
		CreatedAt:     createdAt,
	}

	l.mu.Lock()
	// Names and units are captured before stock moves, like the caller saw them.
	payload := sheets.NewSalePayload(sale, l.catalog.GetByID)
	if err := l.catalog.TakeStock(ctx, adjustments); err != nil {
		l.mu.Unlock()
		return domain.Sale{}, err
	}
	l.sales = append(l.sales, sale)
	l.persistLocked(ctx)
	l.mu.Unlock()

	if sale.Paid() {
		l.background("sale "+sale.ID, func(ctx context.Context) error {
			return l.gateway.SendSale(ctx, payload)
		})
	} else {
		l.background("due "+sale.ID, func(ctx context.Context) error {
			return l.gateway.SendDueSale(ctx, payload)
		})
	}
	return sale.Clone(), nil
}

// Update merges changes into the sale. It never touches stock. A sale that
// ends up paid is pushed to the sales sheet and cleared from receivables;
// otherwise its receivable row is refreshed.
func (l *Ledger) Update(ctx context.Context, id string, changes domain.SaleChanges) (domain.Sale, bool) {
	updated, err := l.update(ctx, id, changes, nil)
	return updated, err == nil
}

// update applies changes when guard accepts the current sale. The check and
// the write happen under one lock.
func (l *Ledger) update(ctx context.Context, id string, changes domain.SaleChanges, guard func(domain.Sale) error) (domain.Sale, error) {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return domain.Sale{}, fmt.Errorf("%w: %s", store.ErrSaleNotFound, id)
	}
	if guard != nil {
		if err := guard(l.sales[i]); err != nil {
			l.mu.Unlock()
			return domain.Sale{}, err
		}
	}
	updated := applySaleChanges(l.sales[i], changes)
	l.sales[i] = updated
	l.persistLocked(ctx)
	l.mu.Unlock()

	payload := sheets.NewSalePayload(updated, l.catalog.GetByID)
	if updated.Paid() {
		l.background("paid "+id, func(ctx context.Context) error {
			pushErr := l.gateway.SendSale(ctx, payload)
			clearErr := l.gateway.SendDueClear(ctx, id)
			return errors.Join(pushErr, clearErr)
		})
	} else {
		l.background("due "+id, func(ctx context.Context) error {
			return l.gateway.SendDueSale(ctx, payload)
		})
	}
	return updated.Clone(), nil
}

// Remove deletes the sale and restores the stock of every line, whatever
// the payment status. Unpaid sales are also deleted from receivables.
func (l *Ledger) Remove(ctx context.Context, id string) (domain.Sale, bool) {
	l.mu.Lock()
	i := l.indexLocked(id)
	if i < 0 {
		l.mu.Unlock()
		return domain.Sale{}, false
	}
	removed := l.sales[i]
	l.sales = append(l.sales[:i:i], l.sales[i+1:]...)
	l.persistLocked(ctx)

	adjustments := make([]domain.StockAdjustment, 0, len(removed.Items))
	for _, item := range removed.Items {
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: item.ProductID, Qty: item.Quantity})
	}
	l.catalog.RestoreStock(ctx, adjustments)
	l.mu.Unlock()

	if !removed.Paid() {
		l.background("due delete "+id, func(ctx context.Context) error {
			return l.gateway.SendDueDelete(ctx, id)
		})
	}
	return removed.Clone(), true
}

// SetAll adopts a remote snapshot wholesale, with no pushes and no stock
// side effects.
func (l *Ledger) SetAll(ctx context.Context, sales []domain.Sale) {
	next := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		next = append(next, s.Clone())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sales = next
	l.persistLocked(ctx)
}

// Checkout turns a cart request into a sale priced from the current catalog.
func (l *Ledger) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Sale, error) {
	if req.Department <= 0 {
		return domain.Sale{}, fmt.Errorf("%w: department must be a positive number", store.ErrInvalidInput)
	}

	status := req.PaymentStatus
	switch status {
	case "":
		status = domain.PaymentStatusPaid
	case domain.PaymentStatusPaid, domain.PaymentStatusPending:
	default:
		return domain.Sale{}, fmt.Errorf("%w: payment status must be pagado or pendiente", store.ErrInvalidInput)
	}

	var createdAt time.Time
	if req.CreatedAt != nil {
		if req.CreatedAt.After(l.now()) {
			return domain.Sale{}, fmt.Errorf("%w: sale date cannot be in the future", store.ErrInvalidInput)
		}
		createdAt = *req.CreatedAt
	}

	var draft domain.SaleDraft
	for _, line := range req.Items {
		product, ok := l.catalog.GetByID(line.ProductID)
		if !ok {
			return domain.Sale{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, line.ProductID)
		}
		if err := draft.AddItem(product, line.Quantity); err != nil {
			if errors.Is(err, domain.ErrExceedsStock) {
				return domain.Sale{}, fmt.Errorf("%w: %w", store.ErrInsufficientStock, err)
			}
			return domain.Sale{}, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
		}
	}
	if draft.Empty() {
		return domain.Sale{}, fmt.Errorf("%w: add at least one product", store.ErrInvalidInput)
	}

	sale, err := l.Add(ctx, domain.NewSale{
		Items:         draft.Items(),
		Total:         draft.Total(),
		Department:    req.Department,
		PaymentStatus: status,
		PaymentType:   domain.NormalizePaymentType(string(req.PaymentType)),
		CreatedAt:     createdAt,
	})
	if err != nil {
		return domain.Sale{}, err
	}
	log.Printf("[ledger] sale recorded id=%s total=%.2f status=%s", sale.ID, sale.Total, sale.PaymentStatus)
	return sale, nil
}

// Edit validates a partial sale update before applying it. Lines and total
// are fixed once stock has been taken for them.
func (l *Ledger) Edit(ctx context.Context, id string, changes domain.SaleChanges) (domain.Sale, error) {
	if changes.Items != nil || changes.Total != nil {
		return domain.Sale{}, fmt.Errorf("%w: sale items and total cannot be edited", store.ErrInvalidInput)
	}
	if changes.Department != nil && *changes.Department <= 0 {
		return domain.Sale{}, fmt.Errorf("%w: department must be a positive number", store.ErrInvalidInput)
	}
	if changes.PaymentStatus != nil {
		switch *changes.PaymentStatus {
		case domain.PaymentStatusPaid, domain.PaymentStatusPending:
		default:
			return domain.Sale{}, fmt.Errorf("%w: payment status must be pagado or pendiente", store.ErrInvalidInput)
		}
	}
	if changes.PaymentType != nil {
		normalized := domain.NormalizePaymentType(string(*changes.PaymentType))
		changes.PaymentType = &normalized
	}

	return l.update(ctx, id, changes, nil)
}

// MarkPaid settles a receivable with the given payment type. A sale that is
// already paid is left alone and reported as ErrSaleAlreadyPaid.
func (l *Ledger) MarkPaid(ctx context.Context, id string, paymentType domain.PaymentType) (domain.Sale, error) {
	status := domain.PaymentStatusPaid
	normalized := domain.NormalizePaymentType(string(paymentType))
	changes := domain.SaleChanges{PaymentStatus: &status, PaymentType: &normalized}
	return l.update(ctx, id, changes, func(s domain.Sale) error {
		if s.Paid() {
			return fmt.Errorf("%w: %s", store.ErrSaleAlreadyPaid, id)
		}
		return nil
	})
}

// Dues lists unpaid sales, newest first unless sorted by total.
func (l *Ledger) Dues(filter domain.DuesFilter) domain.DuesResponse {
	l.mu.RLock()
	pending := make([]domain.Sale, 0)
	for _, s := range l.sales {
		if s.Paid() {
			continue
		}
		if filter.Department > 0 && s.Department != filter.Department {
			continue
		}
		if filter.PaymentType != "" && s.PaymentType != filter.PaymentType {
			continue
		}
		pending = append(pending, s.Clone())
	}
	l.mu.RUnlock()

	if filter.SortBy == domain.DuesSortByTotal {
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].Total > pending[j].Total })
	} else {
		sort.SliceStable(pending, func(i, j int) bool { return pending[i].CreatedAt.After(pending[j].CreatedAt) })
	}

	var total float64
	for _, s := range pending {
		total += s.Total
	}
	return domain.DuesResponse{Sales: pending, Count: len(pending), TotalDue: total}
}

func (l *Ledger) indexLocked(id string) int {
	for i := range l.sales {
		if l.sales[i].ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) persistLocked(ctx context.Context) {
	if err := store.SetJSON(ctx, l.kv, store.KeySales, domain.StoreSales(l.sales)); err != nil {
		log.Printf("[ledger] WARN: failed to persist sales: %v", err)
	}
}

func (l *Ledger) background(label string, fn func(ctx context.Context) error) {
	if l.gateway == nil || l.dispatch == nil {
		return
	}
	l.dispatch.Go(label, fn)
}

func applySaleChanges(s domain.Sale, changes domain.SaleChanges) domain.Sale {
	s = s.Clone()
	if changes.Items != nil {
		s.Items = append([]domain.SaleItem{}, changes.Items...)
	}
	if changes.Total != nil {
		s.Total = *changes.Total
	}
	if changes.Department != nil {
		s.Department = *changes.Department
	}
	if changes.PaymentStatus != nil {
		s.PaymentStatus = *changes.PaymentStatus
	}
	if changes.PaymentType != nil {
		s.PaymentType = *changes.PaymentType
	}
	return s
}
