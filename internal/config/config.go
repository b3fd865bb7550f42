package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pricewatch/internal/amount"
	"pricewatch/internal/ledger"
	"pricewatch/internal/logger"
	"pricewatch/internal/status"
	"pricewatch/internal/store"
	"pricewatch/pkg/models"
)

// Store backends.
const (
	BackendSheets = "sheets"
	BackendXLSX   = "xlsx"
	BackendMemory = "memory"
)

type Config struct {
	// Store Configuration
	StoreBackend   string
	GoogleSheetURL string
	XLSXPath       string

	// Table Configuration
	UnpaidTable      string
	PaidTable        string
	CategoryTables   map[models.Category]string
	DecimalSeparator string

	// Retry Configuration
	RetryAttempts int
	RetryDelay    time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		StoreBackend:     getEnv("STORE_BACKEND", BackendSheets),
		GoogleSheetURL:   getEnv("GOOGLE_SHEET_URL", ""),
		XLSXPath:         getEnv("XLSX_PATH", "ledger.xlsx"),
		UnpaidTable:      getEnv("UNPAID_TABLE", status.DefaultTables().Unpaid),
		PaidTable:        getEnv("PAID_TABLE", status.DefaultTables().Paid),
		CategoryTables:   make(map[models.Category]string, len(models.Categories)),
		DecimalSeparator: getEnv("DECIMAL_SEPARATOR", amount.Comma),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:    getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:        getEnv("LOG_OUTPUT", "stderr"), // stdout carries the event payload
	}

	for _, category := range models.Categories {
		config.CategoryTables[category] = getEnv("TABLE_"+string(category), string(category))
	}

	var err error
	defaults := store.DefaultRetryPolicy()
	if config.RetryAttempts, err = strconv.Atoi(getEnv("STORE_RETRY_ATTEMPTS", strconv.Itoa(defaults.Attempts))); err != nil {
		return nil, fmt.Errorf("config validation failed: STORE_RETRY_ATTEMPTS: %w", err)
	}
	if config.RetryDelay, err = time.ParseDuration(getEnv("STORE_RETRY_DELAY", defaults.Delay.String())); err != nil {
		return nil, fmt.Errorf("config validation failed: STORE_RETRY_DELAY: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendSheets:
		if c.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required for the %s backend", BackendSheets)
		}
	case BackendXLSX:
		if c.XLSXPath == "" {
			return fmt.Errorf("XLSX_PATH is required for the %s backend", BackendXLSX)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if !amount.ValidSeparator(c.DecimalSeparator) {
		return fmt.Errorf("DECIMAL_SEPARATOR must be %q or %q, got %q", amount.Comma, amount.Dot, c.DecimalSeparator)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be positive")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("STORE_RETRY_DELAY must not be negative")
	}

	seen := map[string]string{
		c.UnpaidTable: "UNPAID_TABLE",
	}
	if c.PaidTable == c.UnpaidTable {
		return fmt.Errorf("PAID_TABLE and UNPAID_TABLE must differ")
	}
	seen[c.PaidTable] = "PAID_TABLE"
	for _, category := range models.Categories {
		name := c.CategoryTables[category]
		if other, dup := seen[name]; dup {
			return fmt.Errorf("TABLE_%s uses the same table as %s: %q", category, other, name)
		}
		seen[name] = "TABLE_" + string(category)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// RetryPolicy returns the store retry policy.
func (c *Config) RetryPolicy() store.RetryPolicy {
	return store.RetryPolicy{Attempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// LedgerTables returns the category table names.
func (c *Config) LedgerTables() ledger.Tables {
	tables := make(ledger.Tables, len(c.CategoryTables))
	for category, name := range c.CategoryTables {
		tables[category] = name
	}
	return tables
}

// StatusTables returns the status table names.
func (c *Config) StatusTables() status.Tables {
	return status.Tables{Unpaid: c.UnpaidTable, Paid: c.PaidTable}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
