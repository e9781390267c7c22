package report

import (
	"sort"
	"strconv"
	"time"

	"ventasimple/backend/internal/domain"
)

const (
	DefaultDays = 7
	MaxDays     = 366
	topLimit    = 5
	dayLayout   = "2006-01-02"
)

type TopProduct struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
}

type DayTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

type GroupTotal struct {
	Key   string  `json:"key"`
	Sales int     `json:"sales"`
	Total float64 `json:"total"`
}

type Summary struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	Days          int          `json:"days"`
	SalesCount    int          `json:"sales_count"`
	Revenue       float64      `json:"revenue"`
	Units         float64      `json:"units"`
	Top           []TopProduct `json:"top_products"`
	LastDays      []DayTotal   `json:"last_days"`
	MaxDayTotal   float64      `json:"max_day_total"`
	ByDepartment  []GroupTotal `json:"by_department"`
	ByPaymentType []GroupTotal `json:"by_payment_type"`
}

// Summarize folds a sales snapshot into report totals. Day buckets are UTC
// calendar days ending at now; sales outside the window still count toward
// revenue, units and the top list.
func Summarize(sales []domain.Sale, products []domain.Product, days int, now time.Time) Summary {
	if days <= 0 {
		days = DefaultDays
	}
	if days > MaxDays {
		days = MaxDays
	}

	names := productNames(products)
	summary := Summary{
		GeneratedAt: now.UTC(),
		Days:        days,
		SalesCount:  len(sales),
	}

	perProduct := map[string]float64{}
	var productOrder []string
	for _, s := range sales {
		summary.Revenue += s.Total
		summary.Units += s.Units()
		for _, item := range s.Items {
			if _, seen := perProduct[item.ProductID]; !seen {
				productOrder = append(productOrder, item.ProductID)
			}
			perProduct[item.ProductID] += item.Quantity
		}
	}

	top := make([]TopProduct, 0, len(productOrder))
	for _, id := range productOrder {
		name, ok := names[id]
		if !ok {
			name = domain.UnknownProductName
		}
		top = append(top, TopProduct{ProductID: id, Name: name, Quantity: perProduct[id]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Quantity > top[j].Quantity })
	if len(top) > topLimit {
		top = top[:topLimit]
	}
	summary.Top = top

	summary.LastDays, summary.MaxDayTotal = lastDays(sales, days, now)
	summary.ByDepartment = groupBy(sales, func(s domain.Sale) string { return strconv.Itoa(s.Department) })
	summary.ByPaymentType = groupBy(sales, func(s domain.Sale) string { return string(s.PaymentType) })
	return summary
}

func lastDays(sales []domain.Sale, days int, now time.Time) ([]DayTotal, float64) {
	today := now.UTC()
	out := make([]DayTotal, 0, days)
	index := make(map[string]int, days)
	for i := days - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dayLayout)
		index[key] = len(out)
		out = append(out, DayTotal{Date: key})
	}
	for _, s := range sales {
		if i, ok := index[s.CreatedAt.UTC().Format(dayLayout)]; ok {
			out[i].Total += s.Total
		}
	}

	// Floor of 1 keeps bar charts from dividing by zero.
	max := 1.0
	for _, d := range out {
		if d.Total > max {
			max = d.Total
		}
	}
	return out, max
}

func groupBy(sales []domain.Sale, key func(domain.Sale) string) []GroupTotal {
	groups := map[string]*GroupTotal{}
	var order []string
	for _, s := range sales {
		k := key(s)
		g, ok := groups[k]
		if !ok {
			g = &GroupTotal{Key: k}
			groups[k] = g
			order = append(order, k)
		}
		g.Sales++
		g.Total += s.Total
	}

	out := make([]GroupTotal, 0, len(order))
	for _, k := range order {
		out = append(out, *groups[k])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func productNames(products []domain.Product) map[string]string {
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names
}
