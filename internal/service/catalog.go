package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"ventasimple/backend/internal/domain"
	"ventasimple/backend/internal/sheets"
	"ventasimple/backend/internal/store"
	"ventasimple/backend/internal/xid"
)

// Catalog owns the product list. Every mutation is persisted to the KV
// store and pushed to the remote sheet in the background.
type Catalog struct {
	mu       sync.RWMutex
	products []domain.Product
	kv       store.KV
	gateway  Gateway
	dispatch *Dispatcher
	now      func() time.Time
}

func NewCatalog(kv store.KV, gateway Gateway, dispatch *Dispatcher) *Catalog {
	return &Catalog{
		products: []domain.Product{},
		kv:       kv,
		gateway:  gateway,
		dispatch: dispatch,
		now:      time.Now,
	}
}

// Load replaces the in-memory list with the persisted one, migrating
// records written by older versions.
func (c *Catalog) Load(ctx context.Context) int {
	var products []domain.Product
	if raw := store.GetRaw(ctx, c.kv, store.KeyProducts); raw != nil {
		records, err := domain.DecodeRecords(raw)
		if err != nil {
			log.Printf("[catalog] WARN: persisted products unreadable, starting empty: %v", err)
		}
		now := c.now()
		for _, record := range records {
			products = append(products, domain.MigrateProduct(record, now))
		}
	}
	if products == nil {
		products = []domain.Product{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.persistLocked(ctx)
	return len(products)
}

func (c *Catalog) List() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Clone())
	}
	return out
}

func (c *Catalog) GetByID(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i := c.indexLocked(id); i >= 0 {
		return c.products[i].Clone(), true
	}
	return domain.Product{}, false
}

// Add appends a product without validating it; see Create.
func (c *Catalog) Add(ctx context.Context, name string, price float64, stock float64, unit domain.Unit) domain.Product {
	product := domain.Product{
		ID:        xid.New(""),
		Name:      strings.TrimSpace(name),
		Price:     price,
		Stock:     stock,
		Unit:      unit,
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.products = append(c.products, product)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.pushChange(sheets.ActionCreate, product)
	return product.Clone()
}

// Update applies changes to the product with id. Unknown ids are ignored.
func (c *Catalog) Update(ctx context.Context, id string, changes domain.ProductChanges) (domain.Product, bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Product{}, false
	}
	updated := applyProductChanges(c.products[i], changes, c.now())
	c.products[i] = updated
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.pushChange(sheets.ActionUpdate, updated)
	return updated.Clone(), true
}

// Remove deletes the product. Sales that reference it keep their lines.
func (c *Catalog) Remove(ctx context.Context, id string) (domain.Product, bool) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Product{}, false
	}
	removed := c.products[i]
	c.products = append(c.products[:i:i], c.products[i+1:]...)
	c.persistLocked(ctx)
	c.mu.Unlock()

	c.pushChange(sheets.ActionDelete, removed)
	return removed.Clone(), true
}

// SetAll adopts a remote snapshot wholesale. Nothing is pushed back.
func (c *Catalog) SetAll(ctx context.Context, products []domain.Product) {
	next := make([]domain.Product, 0, len(products))
	for _, p := range products {
		next = append(next, p.Clone())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = next
	c.persistLocked(ctx)
}

// TakeStock checks every adjustment against current stock before applying
// any of them, so a failed sale leaves the catalog untouched.
func (c *Catalog) TakeStock(ctx context.Context, adjustments []domain.StockAdjustment) error {
	needed, order := sumAdjustments(adjustments)

	c.mu.Lock()
	for _, id := range order {
		i := c.indexLocked(id)
		if i < 0 {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
		}
		if needed[id] > c.products[i].Stock {
			name := c.products[i].Name
			c.mu.Unlock()
			return fmt.Errorf("%w for %s", store.ErrInsufficientStock, name)
		}
	}

	now := c.now()
	changed := make([]domain.Product, 0, len(order))
	for _, id := range order {
		i := c.indexLocked(id)
		stock := c.products[i].Stock - needed[id]
		c.products[i] = applyProductChanges(c.products[i], domain.ProductChanges{Stock: &stock}, now)
		changed = append(changed, c.products[i])
	}
	c.persistLocked(ctx)
	c.mu.Unlock()

	for _, p := range changed {
		c.pushChange(sheets.ActionUpdate, p)
	}
	return nil
}

// RestoreStock adds quantities back. Products that no longer exist are skipped.
func (c *Catalog) RestoreStock(ctx context.Context, adjustments []domain.StockAdjustment) {
	returned, order := sumAdjustments(adjustments)

	c.mu.Lock()
	now := c.now()
	changed := make([]domain.Product, 0, len(order))
	for _, id := range order {
		i := c.indexLocked(id)
		if i < 0 {
			continue
		}
		stock := c.products[i].Stock + returned[id]
		c.products[i] = applyProductChanges(c.products[i], domain.ProductChanges{Stock: &stock}, now)
		changed = append(changed, c.products[i])
	}
	if len(changed) > 0 {
		c.persistLocked(ctx)
	}
	c.mu.Unlock()

	for _, p := range changed {
		c.pushChange(sheets.ActionUpdate, p)
	}
}

// Create validates a product form and adds it.
func (c *Catalog) Create(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
	}
	unit, err := parseUnit(string(req.Unit))
	if err != nil {
		return domain.Product{}, err
	}
	if err := validatePrice(req.Price); err != nil {
		return domain.Product{}, err
	}
	if err := validateStock(req.Stock, unit); err != nil {
		return domain.Product{}, err
	}

	product := c.Add(ctx, name, req.Price, req.Stock, unit)
	log.Printf("[catalog] product created id=%s name=%q", product.ID, product.Name)
	return product, nil
}

// Edit validates a partial product form and applies it.
func (c *Catalog) Edit(ctx context.Context, id string, changes domain.ProductChanges) (domain.Product, error) {
	existing, ok := c.GetByID(id)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
	}

	if changes.Name != nil {
		name := strings.TrimSpace(*changes.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name is required", store.ErrInvalidInput)
		}
		changes.Name = &name
	}
	if changes.Price != nil {
		if err := validatePrice(*changes.Price); err != nil {
			return domain.Product{}, err
		}
	}
	unit := existing.Unit
	if changes.Unit != nil {
		parsed, err := parseUnit(string(*changes.Unit))
		if err != nil {
			return domain.Product{}, err
		}
		unit = parsed
		changes.Unit = &parsed
	}
	stock := existing.Stock
	if changes.Stock != nil {
		stock = *changes.Stock
	}
	if err := validateStock(stock, unit); err != nil {
		return domain.Product{}, err
	}

	updated, ok := c.Update(ctx, id, changes)
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, id)
	}
	return updated, nil
}

func (c *Catalog) indexLocked(id string) int {
	for i := range c.products {
		if c.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) persistLocked(ctx context.Context) {
	if err := store.SetJSON(ctx, c.kv, store.KeyProducts, domain.StoreProducts(c.products)); err != nil {
		log.Printf("[catalog] WARN: failed to persist products: %v", err)
	}
}

func (c *Catalog) pushChange(action string, product domain.Product) {
	if c.gateway == nil || c.dispatch == nil {
		return
	}
	payload := sheets.NewProductChangePayload(action, product, c.now())
	c.dispatch.Go("product "+action+" "+product.ID, func(ctx context.Context) error {
		return c.gateway.SendProductChange(ctx, payload)
	})
}

func applyProductChanges(p domain.Product, changes domain.ProductChanges, at time.Time) domain.Product {
	if changes.Name != nil {
		p.Name = *changes.Name
	}
	if changes.Price != nil {
		p.Price = *changes.Price
	}
	if changes.Stock != nil {
		p.Stock = *changes.Stock
	}
	if changes.Unit != nil {
		p.Unit = *changes.Unit
	}
	p.UpdatedAt = &at
	return p
}

func sumAdjustments(adjustments []domain.StockAdjustment) (map[string]float64, []string) {
	totals := make(map[string]float64, len(adjustments))
	order := make([]string, 0, len(adjustments))
	for _, adj := range adjustments {
		if _, seen := totals[adj.ProductID]; !seen {
			order = append(order, adj.ProductID)
		}
		totals[adj.ProductID] += adj.Qty
	}
	return totals, order
}

func parseUnit(raw string) (domain.Unit, error) {
	switch domain.Unit(strings.TrimSpace(raw)) {
	case "", domain.UnitPiece:
		return domain.UnitPiece, nil
	case domain.UnitKilogram:
		return domain.UnitKilogram, nil
	default:
		return "", fmt.Errorf("%w: unit must be unit or kg", store.ErrInvalidInput)
	}
}

func validatePrice(price float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: price must be greater than zero", store.ErrInvalidInput)
	}
	return nil
}

func validateStock(stock float64, unit domain.Unit) error {
	if math.IsNaN(stock) || math.IsInf(stock, 0) || stock < 0 {
		return fmt.Errorf("%w: stock must be zero or more", store.ErrInvalidInput)
	}
	if !unit.Fractional() && stock != math.Trunc(stock) {
		return fmt.Errorf("%w: stock must be a whole number for products sold by unit", store.ErrInvalidInput)
	}
	return nil
}
