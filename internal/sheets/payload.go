package sheets

import (
	"time"

	"ventasimple/backend/internal/domain"
)

// DateLayout is ISO 8601 with milliseconds and a numeric UTC offset.
const DateLayout = "2006-01-02T15:04:05.000-07:00"

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type SaleLinePayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

type SalePayload struct {
	ID            string            `json:"id"`
	Date          string            `json:"date"`
	Department    int               `json:"department"`
	PaymentStatus string            `json:"paymentStatus"`
	PaymentType   string            `json:"paymentType"`
	Total         float64           `json:"total"`
	Items         []SaleLinePayload `json:"items"`
}

type DueSalePayload struct {
	SalePayload
	Due bool `json:"due"`
}

type DueClearPayload struct {
	DueClear bool   `json:"dueClear"`
	ID       string `json:"id"`
}

type DueDeletePayload struct {
	DueDelete bool   `json:"dueDelete"`
	ID        string `json:"id"`
}

type ProductChangePayload struct {
	Date      string  `json:"date"`
	Action    string  `json:"action"`
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Price     float64 `json:"price"`
	Stock     float64 `json:"stock"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt *int64  `json:"updatedAt"`
}

// ProductLookup resolves a product by id for naming sale lines.
type ProductLookup func(id string) (domain.Product, bool)

// NewSalePayload denormalises product name and unit into each line. Lines
// whose product is gone are sent as Desconocido with an empty unit.
func NewSalePayload(sale domain.Sale, lookup ProductLookup) SalePayload {
	items := make([]SaleLinePayload, 0, len(sale.Items))
	for _, it := range sale.Items {
		line := SaleLinePayload{
			ProductID: it.ProductID,
			Name:      domain.UnknownProductName,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Subtotal:  it.Subtotal,
		}
		if lookup != nil {
			if p, ok := lookup(it.ProductID); ok {
				line.Name = p.Name
				line.Unit = string(p.Unit)
			}
		}
		items = append(items, line)
	}

	return SalePayload{
		ID:            sale.ID,
		Date:          sale.CreatedAt.Format(DateLayout),
		Department:    sale.Department,
		PaymentStatus: string(sale.PaymentStatus),
		PaymentType:   string(sale.PaymentType),
		Total:         sale.Total,
		Items:         items,
	}
}

func NewProductChangePayload(action string, product domain.Product, at time.Time) ProductChangePayload {
	payload := ProductChangePayload{
		Date:      at.Format(DateLayout),
		Action:    action,
		ID:        product.ID,
		Name:      product.Name,
		Unit:      string(product.Unit),
		Price:     product.Price,
		Stock:     product.Stock,
		CreatedAt: product.CreatedAt.UnixMilli(),
	}
	if product.UpdatedAt != nil {
		ms := product.UpdatedAt.UnixMilli()
		payload.UpdatedAt = &ms
	}
	return payload
}

// FoldProductChanges replays product-change rows in order. The last action
// per id wins and a delete removes the product. Surviving products are
// listed in the order their ids were first seen.
func FoldProductChanges(records []domain.Record, now time.Time) []domain.Product {
	order := make([]string, 0, len(records))
	byID := make(map[string]domain.Product, len(records))

	for _, record := range records {
		id := record.String("id")
		if id == "" {
			continue
		}
		if record.String("action") == ActionDelete {
			delete(byID, id)
			continue
		}
		if _, exists := byID[id]; !exists {
			order = append(order, id)
		}
		byID[id] = domain.MigrateProduct(record, now)
	}

	products := make([]domain.Product, 0, len(byID))
	seen := make(map[string]bool, len(byID))
	for _, id := range order {
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		products = append(products, p)
	}
	return products
}
