package domain

import "time"

type Unit string

type PaymentStatus string

type PaymentType string

const (
	UnitPiece    Unit = "unit"
	UnitKilogram Unit = "kg"
)

const (
	PaymentStatusPaid    PaymentStatus = "pagado"
	PaymentStatusPending PaymentStatus = "pendiente"
	// PaymentStatusPartial only appears in legacy records and is read as pending.
	PaymentStatusPartial PaymentStatus = "parcial"
)

const (
	PaymentTypeCash     PaymentType = "efectivo"
	PaymentTypeTransfer PaymentType = "transferencia"
)

// UnknownProductName labels sale lines whose product no longer exists.
const UnknownProductName = "Desconocido"

type Product struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Price     float64    `json:"price"`
	Stock     float64    `json:"stock"`
	Unit      Unit       `json:"unit"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ProductChanges is a partial update; nil fields are left untouched.
type ProductChanges struct {
	Name  *string  `json:"name,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Stock *float64 `json:"stock,omitempty"`
	Unit  *Unit    `json:"unit,omitempty"`
}

type ProductCreateRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock float64 `json:"stock"`
	Unit  Unit    `json:"unit"`
}

type SaleItem struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Subtotal  float64 `json:"subtotal"`
}

type Sale struct {
	ID            string        `json:"id"`
	Items         []SaleItem    `json:"items"`
	Total         float64       `json:"total"`
	Department    int           `json:"department"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentType   PaymentType   `json:"payment_type"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewSale carries everything Ledger.Add needs; CreatedAt zero means now.
type NewSale struct {
	Items         []SaleItem
	Total         float64
	Department    int
	PaymentStatus PaymentStatus
	PaymentType   PaymentType
	CreatedAt     time.Time
}

type SaleChanges struct {
	Items         []SaleItem     `json:"items,omitempty"`
	Total         *float64       `json:"total,omitempty"`
	Department    *int           `json:"department,omitempty"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty"`
	PaymentType   *PaymentType   `json:"payment_type,omitempty"`
}

type StockAdjustment struct {
	ProductID string
	Qty       float64
}

type CheckoutLine struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
}

type CheckoutRequest struct {
	Items         []CheckoutLine `json:"items"`
	Department    int            `json:"department"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	PaymentType   PaymentType    `json:"payment_type"`
	CreatedAt     *time.Time     `json:"created_at,omitempty"`
}

type MarkPaidRequest struct {
	PaymentType PaymentType `json:"payment_type"`
}

type DuesFilter struct {
	Department  int
	PaymentType PaymentType
	SortBy      string
}

const (
	DuesSortByDate  = "fecha"
	DuesSortByTotal = "total"
)

type DuesResponse struct {
	Sales    []Sale  `json:"sales"`
	Count    int     `json:"count"`
	TotalDue float64 `json:"total_due"`
}

type SyncResponse struct {
	Resource string `json:"resource"`
	Applied  int    `json:"applied"`
}

func (u Unit) Fractional() bool {
	return u == UnitKilogram
}

// NormalizeUnit maps anything other than the literal "kg" to UnitPiece.
func NormalizeUnit(raw string) Unit {
	if Unit(raw) == UnitKilogram {
		return UnitKilogram
	}
	return UnitPiece
}

// NormalizePaymentStatus folds the legacy partial status into pending and
// treats anything unrecognised as paid.
func NormalizePaymentStatus(raw string) PaymentStatus {
	switch PaymentStatus(raw) {
	case PaymentStatusPending, PaymentStatusPartial:
		return PaymentStatusPending
	default:
		return PaymentStatusPaid
	}
}

func NormalizePaymentType(raw string) PaymentType {
	if PaymentType(raw) == PaymentTypeTransfer {
		return PaymentTypeTransfer
	}
	return PaymentTypeCash
}

func (s Sale) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Units sums item quantities, mixing pieces and kilograms like the reports do.
func (s Sale) Units() float64 {
	var total float64
	for _, item := range s.Items {
		total += item.Quantity
	}
	return total
}

func (s Sale) Clone() Sale {
	cloned := s
	cloned.Items = append([]SaleItem(nil), s.Items...)
	return cloned
}

func (p Product) Clone() Product {
	cloned := p
	if p.UpdatedAt != nil {
		at := *p.UpdatedAt
		cloned.UpdatedAt = &at
	}
	return cloned
}
