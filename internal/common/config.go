package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Invoice   InvoiceConfig
	Reconcile ReconcileConfig
	Reference ReferenceConfig
	OCR       OCRConfig
	Output    OutputConfig
	Database  DatabaseConfig
	Daemon    DaemonConfig
	LogLevel  slog.Level
}

// InvoiceConfig holds layout/locale settings for the vendor invoice.
type InvoiceConfig struct {
	Locale          string // "sv" (1 234,56) or "en" (1,234.56)
	DefaultCurrency string
}

// ReconcileConfig holds tolerance and rounding used by the validator.
type ReconcileConfig struct {
	Tolerance decimal.Decimal
	Decimals  int32
	Rounding  string // "half_up" | "half_even"
}

// ReferenceConfig holds settings for the reference workbook and matching.
type ReferenceConfig struct {
	WorkbookPath     string
	FuzzyMaxDistance int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Pdftoppm         string
	Pdftotext        string
	Tesseract        string
	TesseractLang    string
	TessdataDir      string
	DPI              int
	PSM              int
	MaxPages         int
	PreferTextLayer  bool
	ArtifactCacheDir string
}

// OutputConfig holds backup/export settings.
type OutputConfig struct {
	Dir      string
	Approver string
}

// DatabaseConfig holds run-log database configuration. Empty DSN disables the run log.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DaemonConfig holds settings for the inbox watcher.
type DaemonConfig struct {
	InboxDir string
	GRPCAddr string
	Debounce time.Duration
}

// LoadDotEnv loads the first .env file found; missing files are not an error.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = []string{".env", "../.env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Invoice: InvoiceConfig{
			Locale:          strings.ToLower(getEnv("INVOICE_LOCALE", "sv")),
			DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "SEK")),
		},
		Reconcile: ReconcileConfig{
			Tolerance: getEnvAsDecimal("RECON_TOLERANCE", decimal.RequireFromString("0.02")),
			Decimals:  int32(getEnvAsInt("RECON_DECIMALS", 2)),
			Rounding:  strings.ToLower(getEnv("RECON_ROUNDING", "half_up")),
		},
		Reference: ReferenceConfig{
			WorkbookPath:     getEnv("REFERENCE_XLSX", "data/users.xlsx"),
			FuzzyMaxDistance: getEnvAsInt("FUZZY_MAX_DISTANCE", 3),
		},
		OCR: OCRConfig{
			Pdftoppm:         getEnv("PDFTOPPM", "pdftoppm"),
			Pdftotext:        getEnv("PDFTOTEXT", "pdftotext"),
			Tesseract:        getEnv("TESSERACT", "tesseract"),
			TesseractLang:    getEnv("TESSERACT_LANG", "swe"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			DPI:              getEnvAsInt("OCR_DPI", 300),
			PSM:              getEnvAsInt("OCR_PSM", 6),
			MaxPages:         getEnvAsInt("OCR_MAX_PAGES", 0),
			PreferTextLayer:  getEnvAsBool("OCR_PREFER_TEXT_LAYER", false),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		Output: OutputConfig{
			Dir:      getEnv("OUTPUT_DIR", "output"),
			Approver: getEnv("APPROVER", ""),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Daemon: DaemonConfig{
			InboxDir: getEnv("INBOX_DIR", "inbox"),
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			Debounce: getEnvAsDuration("INBOX_DEBOUNCE", 2*time.Second),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ".")); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("INVOICE_LOCALE", c.Invoice.Locale, Required, OneOf("sv", "en")).
		Field("DEFAULT_CURRENCY", c.Invoice.DefaultCurrency, CurrencyCode).
		Field("RECON_ROUNDING", c.Reconcile.Rounding, OneOf("half_up", "half_even")).
		Field("OUTPUT_DIR", c.Output.Dir, Required)
	if c.Reconcile.Tolerance.IsNegative() {
		v.Add(ValidationError{Field: "RECON_TOLERANCE", Value: c.Reconcile.Tolerance.String(), Message: "must not be negative"})
	}
	if c.Reconcile.Decimals < 0 || c.Reconcile.Decimals > 6 {
		v.Add(ValidationError{Field: "RECON_DECIMALS", Value: c.Reconcile.Decimals, Message: "must be between 0 and 6"})
	}
	if c.Reference.FuzzyMaxDistance < 0 {
		v.Add(ValidationError{Field: "FUZZY_MAX_DISTANCE", Value: c.Reference.FuzzyMaxDistance, Message: "must not be negative"})
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
