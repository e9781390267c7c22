package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ventasimple/backend/internal/domain"
	"ventasimple/backend/internal/metrics"
	"ventasimple/backend/internal/report"
	"ventasimple/backend/internal/service"
	"ventasimple/backend/internal/sheets"
	"ventasimple/backend/internal/store"
)

type API struct {
	catalog       *service.Catalog
	ledger        *service.Ledger
	syncer        *service.Syncer
	metrics       *metrics.Metrics
	allowedOrigin string
	reportDays    int
	now           func() time.Time
}

type Options struct {
	AllowedOrigin string
	ReportDays    int
	Metrics       *metrics.Metrics
}

func New(catalog *service.Catalog, ledger *service.Ledger, syncer *service.Syncer, opts Options) *API {
	days := opts.ReportDays
	if days <= 0 {
		days = report.DefaultDays
	}
	return &API{
		catalog:       catalog,
		ledger:        ledger,
		syncer:        syncer,
		metrics:       opts.Metrics,
		allowedOrigin: opts.AllowedOrigin,
		reportDays:    days,
		now:           time.Now,
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/products", a.handleProducts)
	mux.HandleFunc("/api/v1/products/", a.handleProductActions)
	mux.HandleFunc("/api/v1/sales", a.handleSales)
	mux.HandleFunc("/api/v1/sales/", a.handleSaleActions)
	mux.HandleFunc("/api/v1/dues", a.handleDues)
	mux.HandleFunc("/api/v1/reports/summary", a.handleReportSummary)
	mux.HandleFunc("/api/v1/reports/sales", a.handleReportSales)
	mux.HandleFunc("/api/v1/sync/products", a.handleSyncProducts)
	mux.HandleFunc("/api/v1/sync/sales", a.handleSyncSales)

	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}

	return a.withMiddleware(mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"time":     a.now().UTC().Format(time.RFC3339),
		"products": len(a.catalog.List()),
		"sales":    len(a.ledger.List()),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"products": a.catalog.List()})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.catalog.Create(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitTail(r.URL.Path, "/api/v1/products/")
	if !ok || action != "" {
		writeError(w, http.StatusNotFound, errors.New("unknown product route"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, found := a.catalog.GetByID(id)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", store.ErrProductNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var changes domain.ProductChanges
		if err := decodeJSON(r, &changes); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		product, err := a.catalog.Edit(r.Context(), id, changes)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodDelete:
		product, found := a.catalog.Remove(r.Context(), id)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", store.ErrProductNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"sales": a.ledger.List()})
	case http.MethodPost:
		var req domain.CheckoutRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		sale, err := a.ledger.Checkout(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	id, action, ok := splitTail(r.URL.Path, "/api/v1/sales/")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown sale route"))
		return
	}

	switch action {
	case "":
	case "pay":
		a.handleMarkPaid(w, r, id)
		return
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown sale route"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		sale, found := a.ledger.GetByID(id)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", store.ErrSaleNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodPatch:
		var changes domain.SaleChanges
		if err := decodeJSON(r, &changes); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sale, err := a.ledger.Edit(r.Context(), id, changes)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	case http.MethodDelete:
		sale, found := a.ledger.Remove(r.Context(), id)
		if !found {
			writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", store.ErrSaleNotFound, id))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMarkPaid(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.MarkPaidRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	sale, err := a.ledger.MarkPaid(r.Context(), id, req.PaymentType)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleDues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	filter := domain.DuesFilter{SortBy: strings.ToLower(strings.TrimSpace(q.Get("sort")))}
	if raw := strings.TrimSpace(q.Get("department")); raw != "" {
		dept, err := strconv.Atoi(raw)
		if err != nil || dept <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("department must be a positive number"))
			return
		}
		filter.Department = dept
	}
	switch raw := domain.PaymentType(strings.ToLower(strings.TrimSpace(q.Get("payment_type")))); raw {
	case "", "todas":
	case domain.PaymentTypeCash, domain.PaymentTypeTransfer:
		filter.PaymentType = raw
	default:
		writeError(w, http.StatusBadRequest, errors.New("payment_type must be efectivo, transferencia or todas"))
		return
	}
	switch filter.SortBy {
	case "", domain.DuesSortByDate, domain.DuesSortByTotal:
	default:
		writeError(w, http.StatusBadRequest, errors.New("sort must be fecha or total"))
		return
	}

	writeJSON(w, http.StatusOK, a.ledger.Dues(filter))
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	days := parsePositiveLimit(r.URL.Query().Get("days"), a.reportDays, report.MaxDays)
	summary := report.Summarize(a.ledger.List(), a.catalog.List(), days, a.now())
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleReportSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	sales := a.ledger.List()
	products := a.catalog.List()
	now := a.now()
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	var buf bytes.Buffer
	switch format {
	case "", "csv":
		if err := report.WriteCSV(&buf, sales, products); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(now, "csv")))
	case "html":
		days := parsePositiveLimit(r.URL.Query().Get("days"), a.reportDays, report.MaxDays)
		summary := report.Summarize(sales, products, days, now)
		if err := report.WriteHTML(&buf, summary, sales, products); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be csv or html"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleSyncProducts(w http.ResponseWriter, r *http.Request) {
	a.handleSync(w, r, sheets.ResourceProducts, a.syncer.PullProducts)
}

func (a *API) handleSyncSales(w http.ResponseWriter, r *http.Request) {
	a.handleSync(w, r, sheets.ResourceSales, a.syncer.PullSales)
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request, resource string, pull func(ctx context.Context) (int, error)) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	applied, err := pull(r.Context())
	if err != nil {
		if errors.Is(err, sheets.ErrNotConfigured) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		log.Printf("[sync] WARN: manual %s sync failed: %v", resource, err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "sync failed"})
		return
	}
	writeJSON(w, http.StatusOK, domain.SyncResponse{Resource: resource, Applied: applied})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)
		if a.metrics != nil {
			a.metrics.ObserveRequest(r.Method, routeLabel(r.URL.Path), strconv.Itoa(rec.status), elapsed.Seconds())
		}
		log.Printf("%s %s %s", r.Method, r.URL.Path, elapsed)
	})
}

// routeLabel collapses ids so metric labels stay bounded.
func routeLabel(path string) string {
	for _, prefix := range []string{"/api/v1/products/", "/api/v1/sales/"} {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		_, action, ok := splitTail(path, prefix)
		if !ok {
			return prefix + "other"
		}
		if action != "" {
			return prefix + "{id}/" + action
		}
		return prefix + "{id}"
	}
	switch path {
	case "/healthz", "/metrics", "/api/v1/products", "/api/v1/sales", "/api/v1/dues",
		"/api/v1/reports/summary", "/api/v1/reports/sales", "/api/v1/sync/products", "/api/v1/sync/sales":
		return path
	}
	return "other"
}

// splitTail parses "{id}" or "{id}/{action}" after prefix.
func splitTail(path string, prefix string) (string, string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	tail := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if tail == "" {
		return "", "", false
	}
	parts := strings.Split(tail, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", true
	case 2:
		return parts[0], parts[1], true
	default:
		return "", "", false
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
