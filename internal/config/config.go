package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SheetsSalesURL       string
	SheetsProductsURL    string
	SheetsDuesURL        string
	SheetsProductsGetURL string
	SheetsSalesGetURL    string
	SheetsTimeoutSeconds int

	SyncIntervalMinutes int
	SyncTimezone        string
	ReportDays          int
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Variables already set win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0, 0),

		SheetsSalesURL:       strings.TrimSpace(os.Getenv("SHEETS_SALES_URL")),
		SheetsProductsURL:    strings.TrimSpace(os.Getenv("SHEETS_PRODUCTS_URL")),
		SheetsDuesURL:        strings.TrimSpace(os.Getenv("SHEETS_DUES_URL")),
		SheetsProductsGetURL: strings.TrimSpace(os.Getenv("SHEETS_PRODUCTS_GET_URL")),
		SheetsSalesGetURL:    strings.TrimSpace(os.Getenv("SHEETS_SALES_GET_URL")),
		SheetsTimeoutSeconds: getInt("SHEETS_TIMEOUT_SECONDS", 15, 1),

		SyncIntervalMinutes: getInt("SYNC_INTERVAL_MINUTES", 0, 0),
		SyncTimezone:        getEnv("SYNC_TIMEZONE", "UTC"),
		ReportDays:          getInt("REPORT_DAYS", 7, 1),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) SheetsTimeout() time.Duration {
	return time.Duration(c.SheetsTimeoutSeconds) * time.Second
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

// getInt falls back when the value is missing, malformed or below min.
func getInt(key string, fallback int, min int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(getEnv(key, strconv.Itoa(fallback))))
	if err != nil || parsed < min {
		return fallback
	}
	return parsed
}
