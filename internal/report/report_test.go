package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventasimple/backend/internal/domain"
)

var reportNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func sampleCatalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Pan", Price: 1200, Stock: 10, Unit: domain.UnitPiece},
		{ID: "p2", Name: "Queso, fresco", Price: 8000, Stock: 3, Unit: domain.UnitKilogram},
	}
}

func sampleSales() []domain.Sale {
	return []domain.Sale{
		{
			ID:    "s1",
			Items: []domain.SaleItem{{ProductID: "p1", Quantity: 3, Price: 1200, Subtotal: 3600}},
			Total: 3600, Department: 2, PaymentStatus: domain.PaymentStatusPaid, PaymentType: domain.PaymentTypeCash,
			CreatedAt: reportNow.Add(-time.Hour),
		},
		{
			ID: "s2",
			Items: []domain.SaleItem{
				{ProductID: "p2", Quantity: 0.5, Price: 8000, Subtotal: 4000},
				{ProductID: "gone", Quantity: 4, Price: 500, Subtotal: 2000},
			},
			Total: 6000, Department: 7, PaymentStatus: domain.PaymentStatusPending, PaymentType: domain.PaymentTypeTransfer,
			CreatedAt: reportNow.AddDate(0, 0, -2),
		},
		{
			ID:    "old",
			Items: []domain.SaleItem{{ProductID: "p1", Quantity: 1, Price: 1000, Subtotal: 1000}},
			Total: 1000, Department: 2, PaymentStatus: domain.PaymentStatusPaid, PaymentType: domain.PaymentTypeCash,
			CreatedAt: reportNow.AddDate(0, 0, -30),
		},
	}
}

func TestSummarizeTotals(t *testing.T) {
	summary := Summarize(sampleSales(), sampleCatalog(), 0, reportNow)

	assert.Equal(t, DefaultDays, summary.Days)
	assert.Equal(t, 3, summary.SalesCount)
	assert.Equal(t, 10600.0, summary.Revenue)
	assert.Equal(t, 8.5, summary.Units)

	require.Len(t, summary.Top, 3)
	assert.Equal(t, "Pan", summary.Top[0].Name)
	assert.Equal(t, 4.0, summary.Top[0].Quantity)
	assert.Equal(t, domain.UnknownProductName, summary.Top[1].Name)
	assert.Equal(t, "Queso, fresco", summary.Top[2].Name)
}

func TestSummarizeLastDaysWindow(t *testing.T) {
	summary := Summarize(sampleSales(), nil, 3, reportNow)

	require.Len(t, summary.LastDays, 3)
	assert.Equal(t, "2025-06-08", summary.LastDays[0].Date)
	assert.Equal(t, 6000.0, summary.LastDays[0].Total)
	assert.Equal(t, 0.0, summary.LastDays[1].Total)
	assert.Equal(t, "2025-06-10", summary.LastDays[2].Date)
	assert.Equal(t, 3600.0, summary.LastDays[2].Total)
	assert.Equal(t, 6000.0, summary.MaxDayTotal)

	empty := Summarize(nil, nil, 2, reportNow)
	assert.Equal(t, 1.0, empty.MaxDayTotal)
	assert.Empty(t, empty.Top)
}

func TestSummarizeGroups(t *testing.T) {
	summary := Summarize(sampleSales(), nil, 7, reportNow)

	require.Len(t, summary.ByDepartment, 2)
	assert.Equal(t, GroupTotal{Key: "7", Sales: 1, Total: 6000}, summary.ByDepartment[0])
	assert.Equal(t, GroupTotal{Key: "2", Sales: 2, Total: 4600}, summary.ByDepartment[1])

	require.Len(t, summary.ByPaymentType, 2)
	assert.Equal(t, "transferencia", summary.ByPaymentType[0].Key)
}

func TestSummarizeKeepsTopFive(t *testing.T) {
	var sales []domain.Sale
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		sales = append(sales, domain.Sale{Items: []domain.SaleItem{{ProductID: id, Quantity: float64(i + 1)}}})
	}
	summary := Summarize(sales, nil, 1, reportNow)

	require.Len(t, summary.Top, 5)
	assert.Equal(t, "g", summary.Top[0].ProductID)
	assert.Equal(t, "c", summary.Top[4].ProductID)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSales()[:2], sampleCatalog()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"2025-06-10T14:00:00.000Z", "2", "pagado", "Pan", "unit", "3", "1200", "3600", "3600"}, rows[1])
	assert.Equal(t, "Queso, fresco", rows[2][3])
	assert.Equal(t, "0.5", rows[2][5])
	assert.Equal(t, []string{domain.UnknownProductName, ""}, rows[3][3:5])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, nil))
	assert.Equal(t, strings.Join(csvHeader, ",")+"\n", buf.String())
}

func TestWriteHTMLEscapesNames(t *testing.T) {
	products := []domain.Product{{ID: "p1", Name: "<script>alert(1)</script>", Unit: domain.UnitPiece}}
	sales := []domain.Sale{{Items: []domain.SaleItem{{ProductID: "p1", Quantity: 1, Price: 10, Subtotal: 10}}, Total: 10, CreatedAt: reportNow}}

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Summarize(sales, products, 1, reportNow), sales, products))

	out := buf.String()
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "Ventas últimos 1 días")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "reporte_2025-06-10.csv", FileName(reportNow, "csv"))
}
