package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventasimple/backend/internal/domain"
)

type recordingObserver struct {
	mu      sync.Mutex
	pushes  map[string]int
	fetches map[string]int
	errors  int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{pushes: map[string]int{}, fetches: map[string]int{}}
}

func (o *recordingObserver) ObservePush(channel string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pushes[channel]++
	if err != nil {
		o.errors++
	}
}

func (o *recordingObserver) ObserveFetch(resource string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches[resource]++
	if err != nil {
		o.errors++
	}
}

type capturedPost struct {
	contentType string
	body        map[string]any
}

func captureServer(t *testing.T) (*httptest.Server, func() []capturedPost) {
	t.Helper()
	var (
		mu    sync.Mutex
		posts []capturedPost
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		posts = append(posts, capturedPost{contentType: r.Header.Get("Content-Type"), body: body})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedPost {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedPost(nil), posts...)
	}
}

func TestSendSaleWireShape(t *testing.T) {
	srv, posts := captureServer(t)
	client := New(Config{SalesURL: srv.URL}, nil)

	createdAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("CLT", -3*3600))
	sale := domain.Sale{
		ID:            "s1",
		Department:    5,
		PaymentStatus: domain.PaymentStatusPaid,
		PaymentType:   domain.PaymentTypeCash,
		Total:         300,
		CreatedAt:     createdAt,
		Items: []domain.SaleItem{
			{ProductID: "p1", Quantity: 3, Price: 100, Subtotal: 300},
			{ProductID: "gone", Quantity: 1, Price: 0, Subtotal: 0},
		},
	}
	lookup := func(id string) (domain.Product, bool) {
		if id == "p1" {
			return domain.Product{ID: "p1", Name: "Apple", Unit: domain.UnitPiece}, true
		}
		return domain.Product{}, false
	}

	require.NoError(t, client.SendSale(context.Background(), NewSalePayload(sale, lookup)))

	got := posts()
	require.Len(t, got, 1)
	body := got[0].body
	assert.Equal(t, "s1", body["id"])
	assert.Equal(t, "2025-01-02T03:04:05.000-03:00", body["date"])
	assert.Equal(t, float64(5), body["department"])
	assert.Equal(t, "pagado", body["paymentStatus"])
	assert.Equal(t, "efectivo", body["paymentType"])
	assert.Equal(t, float64(300), body["total"])

	items := body["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Apple", first["name"])
	assert.Equal(t, "unit", first["unit"])
	second := items[1].(map[string]any)
	assert.Equal(t, domain.UnknownProductName, second["name"])
	assert.Equal(t, "", second["unit"])
}

func TestDueChannels(t *testing.T) {
	srv, posts := captureServer(t)
	observer := newRecordingObserver()
	client := New(Config{SalesURL: srv.URL}, observer)
	ctx := context.Background()

	sale := domain.Sale{ID: "s9", PaymentStatus: domain.PaymentStatusPending, CreatedAt: time.Now()}
	require.NoError(t, client.SendDueSale(ctx, NewSalePayload(sale, nil)))
	require.NoError(t, client.SendDueClear(ctx, "s9"))
	require.NoError(t, client.SendDueDelete(ctx, "s9"))

	got := posts()
	require.Len(t, got, 3)
	assert.Equal(t, true, got[0].body["due"])
	assert.Equal(t, "s9", got[0].body["id"])
	assert.Equal(t, map[string]any{"dueClear": true, "id": "s9"}, got[1].body)
	assert.Equal(t, map[string]any{"dueDelete": true, "id": "s9"}, got[2].body)
	assert.Equal(t, "text/plain;charset=utf-8", got[0].contentType)

	assert.Equal(t, 1, observer.pushes[ChannelDue])
	assert.Equal(t, 1, observer.pushes[ChannelDueClear])
	assert.Equal(t, 1, observer.pushes[ChannelDueDelete])
	assert.Zero(t, observer.errors)
}

func TestProductChangePayload(t *testing.T) {
	srv, posts := captureServer(t)
	client := New(Config{ProductsURL: srv.URL}, nil)

	product := domain.Product{ID: "p1", Name: "Apple", Price: 100, Stock: 7, Unit: domain.UnitPiece, CreatedAt: time.UnixMilli(1_700_000_000_000)}
	require.NoError(t, client.SendProductChange(context.Background(), NewProductChangePayload(ActionCreate, product, time.Now())))

	body := posts()[0].body
	assert.Equal(t, "create", body["action"])
	assert.Equal(t, float64(1_700_000_000_000), body["createdAt"])
	assert.Nil(t, body["updatedAt"])
	_, present := body["updatedAt"]
	assert.True(t, present, "updatedAt must be sent as null")
}

func TestPushFailureIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	observer := newRecordingObserver()
	client := New(Config{SalesURL: srv.URL}, observer)
	err := client.SendDueClear(context.Background(), "s1")
	assert.Error(t, err)
	assert.Equal(t, 1, observer.errors)
}

func TestUnconfiguredEndpoints(t *testing.T) {
	client := New(Config{}, nil)
	ctx := context.Background()

	assert.NoError(t, client.SendSale(ctx, SalePayload{}))
	assert.NoError(t, client.SendProductChange(ctx, ProductChangePayload{}))

	_, err := client.FetchProducts(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = client.FetchSales(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchProductsFoldsChangeLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"items":[
			{"action":"create","id":"p1","name":"Apple","unit":"unit","price":100,"stock":10,"createdAt":1700000000000},
			{"action":"create","id":"p2","name":"Queso","unit":"kg","price":8000,"stock":2,"createdAt":1700000000001},
			{"action":"update","id":"p1","name":"Apple","unit":"unit","price":120,"stock":7,"createdAt":1700000000000,"updatedAt":1700000009000},
			{"action":"delete","id":"p2"},
			{"action":"create","id":"p3","name":"Pan","unit":"","price":"900","stock":"40"}
		]}`)
	}))
	defer srv.Close()

	client := New(Config{ProductsGetURL: srv.URL}, nil)
	products, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, 120.0, products[0].Price)
	assert.Equal(t, 7.0, products[0].Stock)
	require.NotNil(t, products[0].UpdatedAt)

	assert.Equal(t, "p3", products[1].ID)
	assert.Equal(t, domain.UnitPiece, products[1].Unit)
	assert.Equal(t, 900.0, products[1].Price)
	assert.Equal(t, 40.0, products[1].Stock)
}

func TestFetchSalesDefaultsEnums(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"id":"s1","date":"2025-01-02T03:04:05.000-03:00","department":5,"paymentStatus":"pendiente","paymentType":"transferencia","total":300,
			 "items":[{"productId":"p1","quantity":3,"price":100,"subtotal":300}]},
			{"date":"2025-01-03T00:00:00.000+00:00","department":"7","paymentStatus":"?","paymentType":"?","total":50,"items":[]}
		]`)
	}))
	defer srv.Close()

	client := New(Config{SalesGetURL: srv.URL}, nil)
	sales, err := client.FetchSales(context.Background())
	require.NoError(t, err)
	require.Len(t, sales, 2)

	assert.Equal(t, domain.PaymentStatusPending, sales[0].PaymentStatus)
	assert.Equal(t, domain.PaymentTypeTransfer, sales[0].PaymentType)
	assert.Len(t, sales[0].Items, 1)

	assert.NotEmpty(t, sales[1].ID)
	assert.Equal(t, 7, sales[1].Department)
	assert.Equal(t, domain.PaymentStatusPaid, sales[1].PaymentStatus)
	assert.Equal(t, domain.PaymentTypeCash, sales[1].PaymentType)
}

func TestFetchSalesKeepsDerivedIDsStable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"date":"2025-01-03T00:00:00.000+00:00","department":1,"total":50,"items":[]},
			{"date":"2025-01-03T00:00:00.000+00:00","department":2,"total":80,"items":[]}
		]`)
	}))
	defer srv.Close()

	client := New(Config{SalesGetURL: srv.URL}, nil)
	first, err := client.FetchSales(context.Background())
	require.NoError(t, err)
	second, err := client.FetchSales(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.NotEmpty(t, first[0].ID)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID)
}

func TestFetchRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>login required</html>`)
	}))
	defer srv.Close()

	observer := newRecordingObserver()
	client := New(Config{SalesGetURL: srv.URL}, observer)
	_, err := client.FetchSales(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, observer.fetches[ResourceSales])
	assert.Equal(t, 1, observer.errors)
}
