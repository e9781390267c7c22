package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"ventasimple/backend/internal/config"
	"ventasimple/backend/internal/httpapi"
	"ventasimple/backend/internal/metrics"
	"ventasimple/backend/internal/schedule"
	"ventasimple/backend/internal/service"
	"ventasimple/backend/internal/sheets"
	"ventasimple/backend/internal/store"
	"ventasimple/backend/internal/store/memory"
	pgstore "ventasimple/backend/internal/store/postgres"
	redisstore "ventasimple/backend/internal/store/redis"
)

func main() {
	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var kv store.KV
	closers := make([]func() error, 0, 1)

	switch {
	case cfg.DatabaseURL != "":
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		kv = pg
		closers = append(closers, pg.Close)
		log.Println("kv store: postgres")
	case cfg.RedisAddr != "":
		rdb := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "")
		if err := rdb.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using in-memory store", err)
			_ = rdb.Close()
			kv = memory.New()
		} else {
			kv = rdb
			closers = append(closers, rdb.Close)
			log.Println("kv store: redis")
		}
	default:
		kv = memory.New()
		log.Println("kv store: in-memory")
	}

	m := metrics.New()
	client := sheets.New(sheets.Config{
		SalesURL:       cfg.SheetsSalesURL,
		ProductsURL:    cfg.SheetsProductsURL,
		DuesURL:        cfg.SheetsDuesURL,
		ProductsGetURL: cfg.SheetsProductsGetURL,
		SalesGetURL:    cfg.SheetsSalesGetURL,
		Timeout:        cfg.SheetsTimeout(),
	}, m)

	dispatch := service.NewDispatcher(cfg.SheetsTimeout())
	catalog := service.NewCatalog(kv, client, dispatch)
	ledger := service.NewLedger(catalog, kv, client, dispatch)
	syncer := service.NewSyncer(catalog, ledger, client)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.SheetsTimeout()+5*time.Second)
	syncer.Startup(startupCtx)
	startupCancel()

	var scheduler *schedule.Scheduler
	if cfg.SyncInterval() > 0 {
		s, err := schedule.New(syncer, cfg.SyncInterval(), cfg.SyncTimezone, 2*cfg.SheetsTimeout())
		if err != nil {
			log.Fatalf("periodic sync: %v", err)
		}
		scheduler = s
		scheduler.Start()
		log.Printf("periodic sync every %s (%s), next run %s", cfg.SyncInterval(), cfg.SyncTimezone, scheduler.NextRun().Format(time.RFC3339))
	}

	api := httpapi.New(catalog, ledger, syncer, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		ReportDays:    cfg.ReportDays,
		Metrics:       m,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.SheetsTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	dispatch.Wait()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateConfig(cfg config.Config) error {
	endpoints := map[string]string{
		"SHEETS_SALES_URL":        cfg.SheetsSalesURL,
		"SHEETS_PRODUCTS_URL":     cfg.SheetsProductsURL,
		"SHEETS_DUES_URL":         cfg.SheetsDuesURL,
		"SHEETS_PRODUCTS_GET_URL": cfg.SheetsProductsGetURL,
		"SHEETS_SALES_GET_URL":    cfg.SheetsSalesGetURL,
	}
	for key, raw := range endpoints {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http or https URL", key)
		}
	}
	if cfg.SheetsTimeoutSeconds < 1 {
		return fmt.Errorf("SHEETS_TIMEOUT_SECONDS must be positive")
	}
	if cfg.SyncIntervalMinutes < 0 {
		return fmt.Errorf("SYNC_INTERVAL_MINUTES must not be negative")
	}
	if cfg.SyncIntervalMinutes > 0 {
		if _, err := time.LoadLocation(cfg.SyncTimezone); err != nil {
			return fmt.Errorf("SYNC_TIMEZONE: %w", err)
		}
	}
	return nil
}
