package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Host string
	Port string

	// Storage settings
	DatabasePath string
	DocumentsDir string

	// Logging settings
	LogLevel  string
	LogFormat string

	// Cache settings
	CacheSize int
	CacheTTL  time.Duration

	// Portal settings
	PortalLandingURL   string
	PortalDirectoryURL string
	PortalSearchURL    string

	// Scraper settings
	ScraperTimeout    time.Duration
	UserAgent         string
	RequestsPerSecond float64

	// Retry settings
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RetryBudget    time.Duration

	// Concurrency settings
	MaxConcurrentScrapes int
	WorkerPoolSize       int

	// Text extraction settings
	TextExtractor string
	PdfToTextPath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// Not an error if .env doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		Host:               getEnv("HOST", "127.0.0.1"),
		Port:               getEnv("PORT", "8080"),
		DatabasePath:       getEnv("DATABASE_PATH", "./data/courtlight.db"),
		DocumentsDir:       getEnv("DOCUMENTS_DIR", "./judgements"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		PortalLandingURL:   getEnv("PORTAL_LANDING_URL", "http://lobis.nic.in/dhcindex.php?cat=1&hc=31"),
		PortalDirectoryURL: getEnv("PORTAL_DIRECTORY_URL", "http://lobis.nic.in/judname.php?scode=31"),
		PortalSearchURL:    getEnv("PORTAL_SEARCH_URL", "http://lobis.nic.in/judname1.php?scode=31&fflag=1"),
		UserAgent:          getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"),
		TextExtractor:      getEnv("TEXT_EXTRACTOR", "pdftotext"),
		PdfToTextPath:      getEnv("PDFTOTEXT_PATH", "pdftotext"),
	}

	// Parse integer values
	var err error
	cfg.CacheSize, err = strconv.Atoi(getEnv("CACHE_SIZE", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_SIZE: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("CACHE_TTL", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	cfg.CacheTTL = time.Duration(cacheTTL) * time.Minute

	scraperTimeout, err := strconv.Atoi(getEnv("SCRAPER_TIMEOUT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPER_TIMEOUT: %w", err)
	}
	cfg.ScraperTimeout = time.Duration(scraperTimeout) * time.Second

	cfg.RequestsPerSecond, err = strconv.ParseFloat(getEnv("REQUESTS_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUESTS_PER_SECOND: %w", err)
	}

	retryBase, err := strconv.Atoi(getEnv("RETRY_BASE_DELAY_MS", "1000"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BASE_DELAY_MS: %w", err)
	}
	cfg.RetryBaseDelay = time.Duration(retryBase) * time.Millisecond

	retryMax, err := strconv.Atoi(getEnv("RETRY_MAX_DELAY", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_MAX_DELAY: %w", err)
	}
	cfg.RetryMaxDelay = time.Duration(retryMax) * time.Second

	retryBudget, err := strconv.Atoi(getEnv("RETRY_BUDGET", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETRY_BUDGET: %w", err)
	}
	cfg.RetryBudget = time.Duration(retryBudget) * time.Second

	cfg.MaxConcurrentScrapes, err = strconv.Atoi(getEnv("MAX_CONCURRENT_SCRAPES", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_SCRAPES: %w", err)
	}
	if cfg.MaxConcurrentScrapes < 1 {
		return nil, fmt.Errorf("invalid MAX_CONCURRENT_SCRAPES: must be at least 1")
	}

	cfg.WorkerPoolSize, err = strconv.Atoi(getEnv("WORKER_POOL_SIZE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: %w", err)
	}
	if cfg.WorkerPoolSize < 1 {
		return nil, fmt.Errorf("invalid WORKER_POOL_SIZE: must be at least 1")
	}

	switch cfg.TextExtractor {
	case "pdftotext", "pdfcpu":
	default:
		return nil, fmt.Errorf("invalid TEXT_EXTRACTOR %q: want pdftotext or pdfcpu", cfg.TextExtractor)
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
