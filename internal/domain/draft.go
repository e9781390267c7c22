package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrFractionalUnits = errors.New("quantity must be a whole number for products sold by unit")
	ErrExceedsStock    = errors.New("quantity exceeds available stock")
)

// SaleDraft collects the lines of a sale under construction. Each product
// appears at most once; adding it again merges into the existing line.
type SaleDraft struct {
	items []SaleItem
}

// AddItem freezes the product's current price on the line. The merged
// quantity is checked against the product's stock.
func (d *SaleDraft) AddItem(product Product, qty float64) error {
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return ErrInvalidQuantity
	}
	if !product.Unit.Fractional() && qty != math.Trunc(qty) {
		return ErrFractionalUnits
	}

	for i, item := range d.items {
		if item.ProductID != product.ID {
			continue
		}
		merged := item.Quantity + qty
		if merged > product.Stock {
			return fmt.Errorf("%w: %s (available %v)", ErrExceedsStock, product.Name, product.Stock)
		}
		d.items[i] = SaleItem{
			ProductID: product.ID,
			Quantity:  merged,
			Price:     product.Price,
			Subtotal:  merged * product.Price,
		}
		return nil
	}

	if qty > product.Stock {
		return fmt.Errorf("%w: %s (available %v)", ErrExceedsStock, product.Name, product.Stock)
	}
	d.items = append(d.items, SaleItem{
		ProductID: product.ID,
		Quantity:  qty,
		Price:     product.Price,
		Subtotal:  qty * product.Price,
	})
	return nil
}

func (d *SaleDraft) Items() []SaleItem {
	return append([]SaleItem(nil), d.items...)
}

func (d *SaleDraft) Total() float64 {
	var total float64
	for _, item := range d.items {
		total += item.Subtotal
	}
	return total
}

func (d *SaleDraft) Empty() bool {
	return len(d.items) == 0
}
