package report

import (
	"encoding/csv"
	"html/template"
	"io"
	"strconv"
	"time"

	"ventasimple/backend/internal/domain"
)

var csvHeader = []string{"fecha", "departamento", "estado_pago", "producto", "unidad", "cantidad", "precio", "subtotal", "total_venta"}

// Line is one sale item flattened with its sale, as exported.
type Line struct {
	Date          string
	Department    string
	PaymentStatus string
	Product       string
	Unit          string
	Quantity      string
	Price         string
	Subtotal      string
	SaleTotal     string
}

// Lines flattens sales into one row per item. Products missing from the
// catalog export as Desconocido with an empty unit.
func Lines(sales []domain.Sale, products []domain.Product) []Line {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var lines []Line
	for _, s := range sales {
		date := s.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z")
		for _, item := range s.Items {
			name, unit := domain.UnknownProductName, ""
			if p, ok := byID[item.ProductID]; ok {
				name, unit = p.Name, string(p.Unit)
			}
			lines = append(lines, Line{
				Date:          date,
				Department:    strconv.Itoa(s.Department),
				PaymentStatus: string(s.PaymentStatus),
				Product:       name,
				Unit:          unit,
				Quantity:      formatNumber(item.Quantity),
				Price:         formatNumber(item.Price),
				Subtotal:      formatNumber(item.Subtotal),
				SaleTotal:     formatNumber(s.Total),
			})
		}
	}
	return lines
}

func WriteCSV(w io.Writer, sales []domain.Sale, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range Lines(sales, products) {
		record := []string{l.Date, l.Department, l.PaymentStatus, l.Product, l.Unit, l.Quantity, l.Price, l.Subtotal, l.SaleTotal}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the download name for an export generated at t.
func FileName(t time.Time, ext string) string {
	return "reporte_" + t.UTC().Format(dayLayout) + "." + ext
}

var salesHTMLTmpl = template.Must(template.New("sales-report").Funcs(template.FuncMap{
	"money": formatNumber,
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Reporte de ventas</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Reporte de ventas</h2>
  <p>Ventas: {{.Summary.SalesCount}} | Ingresos: {{money .Summary.Revenue}} | Unidades: {{money .Summary.Units}}</p>

  <h3>Ventas últimos {{.Summary.Days}} días</h3>
  <table>
    <thead><tr><th>Fecha</th><th>Total</th></tr></thead>
    <tbody>{{range .Summary.LastDays}}<tr><td>{{.Date}}</td><td style="text-align:right;">{{money .Total}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Top productos</h3>
  <table>
    <thead><tr><th>Producto</th><th>Cantidad</th></tr></thead>
    <tbody>{{range .Summary.Top}}<tr><td>{{.Name}}</td><td style="text-align:right;">{{money .Quantity}}</td></tr>{{end}}</tbody>
  </table>

  <h3>Detalle</h3>
  <table>
    <thead><tr><th>Fecha</th><th>Depto</th><th>Estado</th><th>Producto</th><th>Unidad</th><th>Cantidad</th><th>Precio</th><th>Subtotal</th><th>Total venta</th></tr></thead>
    <tbody>{{range .Lines}}<tr><td>{{.Date}}</td><td>{{.Department}}</td><td>{{.PaymentStatus}}</td><td>{{.Product}}</td><td>{{.Unit}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{.Price}}</td><td style="text-align:right;">{{.Subtotal}}</td><td style="text-align:right;">{{.SaleTotal}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

// WriteHTML renders a printable report. Product names are escaped.
func WriteHTML(w io.Writer, summary Summary, sales []domain.Sale, products []domain.Product) error {
	return salesHTMLTmpl.Execute(w, struct {
		Summary Summary
		Lines   []Line
	}{Summary: summary, Lines: Lines(sales, products)})
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
