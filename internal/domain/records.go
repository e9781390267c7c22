package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// StoredProduct is the persisted shape of a Product. Timestamps are epoch
// milliseconds so lists written by older clients stay readable.
type StoredProduct struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Stock     float64 `json:"stock"`
	Unit      Unit    `json:"unit"`
	CreatedAt int64   `json:"createdAt"`
	UpdatedAt *int64  `json:"updatedAt,omitempty"`
}

type StoredSaleItem struct {
	ProductID string  `json:"productId"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

type StoredSale struct {
	ID            string           `json:"id"`
	Items         []StoredSaleItem `json:"items"`
	Total         float64          `json:"total"`
	Department    int              `json:"department"`
	PaymentStatus PaymentStatus    `json:"paymentStatus"`
	PaymentType   PaymentType      `json:"paymentType"`
	CreatedAt     int64            `json:"createdAt"`
}

// Record is a loosely typed JSON object read from storage or the remote
// sheet. Nothing about its shape is trusted until it is mapped.
type Record map[string]any

func StoreProducts(products []Product) []StoredProduct {
	out := make([]StoredProduct, 0, len(products))
	for _, p := range products {
		stored := StoredProduct{
			ID:        p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Stock:     p.Stock,
			Unit:      p.Unit,
			CreatedAt: p.CreatedAt.UnixMilli(),
		}
		if p.UpdatedAt != nil {
			ms := p.UpdatedAt.UnixMilli()
			stored.UpdatedAt = &ms
		}
		out = append(out, stored)
	}
	return out
}

func StoreSales(sales []Sale) []StoredSale {
	out := make([]StoredSale, 0, len(sales))
	for _, s := range sales {
		items := make([]StoredSaleItem, 0, len(s.Items))
		for _, it := range s.Items {
			items = append(items, StoredSaleItem(it))
		}
		out = append(out, StoredSale{
			ID:            s.ID,
			Items:         items,
			Total:         s.Total,
			Department:    s.Department,
			PaymentStatus: s.PaymentStatus,
			PaymentType:   s.PaymentType,
			CreatedAt:     s.CreatedAt.UnixMilli(),
		})
	}
	return out
}

// DecodeRecords accepts either a bare JSON array of objects or an envelope
// of the form {"items": [...]}.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Items []Record `json:"items"`
		}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
			return nil, err
		}
		return envelope.Items, nil
	}
	var records []Record
	if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// MigrateProduct maps a persisted record of any schema version to a Product:
// unit defaults to "unit", price and stock to 0, createdAt to now.
func MigrateProduct(r Record, now time.Time) Product {
	p := Product{
		ID:        r.String("id"),
		Name:      r.String("name"),
		Price:     r.Float("price", 0),
		Stock:     r.Float("stock", 0),
		Unit:      NormalizeUnit(r.String("unit")),
		CreatedAt: r.Time("createdAt", now),
	}
	if at, ok := r.TimeOK("updatedAt"); ok {
		p.UpdatedAt = &at
	}
	return p
}

// MigrateSale maps a persisted or remote sale record. Remote rows carry the
// timestamp as "date" instead of "createdAt".
func MigrateSale(r Record, now time.Time) Sale {
	createdAt, ok := r.TimeOK("createdAt")
	if !ok {
		createdAt = r.Time("date", now)
	}

	var items []SaleItem
	if raw, ok := r["items"].([]any); ok {
		items = make([]SaleItem, 0, len(raw))
		for _, entry := range raw {
			obj, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			item := Record(obj)
			qty := item.Float("quantity", 0)
			price := item.Float("price", 0)
			items = append(items, SaleItem{
				ProductID: item.String("productId"),
				Quantity:  qty,
				Price:     price,
				Subtotal:  item.Float("subtotal", qty*price),
			})
		}
	}
	if items == nil {
		items = []SaleItem{}
	}

	return Sale{
		ID:            r.String("id"),
		Items:         items,
		Total:         r.Float("total", 0),
		Department:    int(r.Float("department", 0)),
		PaymentStatus: NormalizePaymentStatus(r.String("paymentStatus")),
		PaymentType:   NormalizePaymentType(r.String("paymentType")),
		CreatedAt:     createdAt,
	}
}

func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float coerces numbers and numeric strings; anything else yields fallback.
func (r Record) Float(key string, fallback float64) float64 {
	var (
		f   float64
		err error
	)
	switch v := r[key].(type) {
	case float64:
		f = v
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return fallback
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return f
}

func (r Record) Time(key string, fallback time.Time) time.Time {
	if at, ok := r.TimeOK(key); ok {
		return at
	}
	return fallback
}

// TimeOK reads epoch milliseconds, numeric strings or RFC 3339 strings.
func (r Record) TimeOK(key string) (time.Time, bool) {
	raw, present := r[key]
	if !present || raw == nil {
		return time.Time{}, false
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z0700", "2006-01-02"} {
			if at, err := time.Parse(layout, s); err == nil {
				return at, true
			}
		}
	}
	ms := r.Float(key, math.NaN())
	if math.IsNaN(ms) || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}
