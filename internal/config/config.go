package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Published CSV exports of the CEVS wastewater monitoring sheet.
const (
	DefaultViralLoadURL = "https://docs.google.com/spreadsheets/d/e/2PACX-1vTZfjxdY8_x5WNd9_NE3QQPeche-dMdY5KdvNpq8H4W-lmUTidwrKpV0uLzLtihV7UAPIl68WvugMsN/pub?gid=0&single=true&output=csv"
	DefaultCasesURL     = "https://docs.google.com/spreadsheets/d/e/2PACX-1vTZfjxdY8_x5WNd9_NE3QQPeche-dMdY5KdvNpq8H4W-lmUTidwrKpV0uLzLtihV7UAPIl68WvugMsN/pub?gid=1012737506&single=true&output=csv"

	DefaultCollectionSite = "ETE Serraria"
	DefaultMunicipality   = "PORTO ALEGRE"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data sources.
	ViralLoadURL   string
	CasesURL       string
	CollectionSite string
	Municipality   string
	FetchTimeout   time.Duration
	FetchRetries   int

	// DefaultStart is the window start used when a request omits one.
	DefaultStart time.Time

	ExportCacheSize int

	// Kafka publishing of normalized records.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	fetchRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_RETRIES", "2"))
	if err != nil || fetchRetries < 0 || fetchRetries > 10 {
		return nil, errors.New("invalid FETCH_RETRIES: must be between 0 and 10")
	}

	startStr := sharedcfg.EnvOrDefault("DEFAULT_START_DATE", "2020-05-01")
	defaultStart, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_START_DATE %q: expected YYYY-MM-DD", startStr)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		ViralLoadURL:   sharedcfg.EnvOrDefault("VIRAL_LOAD_URL", DefaultViralLoadURL),
		CasesURL:       sharedcfg.EnvOrDefault("CASES_URL", DefaultCasesURL),
		CollectionSite: sharedcfg.EnvOrDefault("COLLECTION_SITE", DefaultCollectionSite),
		Municipality:   sharedcfg.EnvOrDefault("MUNICIPALITY", DefaultMunicipality),
		FetchTimeout:   fetchTimeout,
		FetchRetries:   fetchRetries,
		DefaultStart:   defaultStart,

		ExportCacheSize: parseExportCacheSize(),

		KafkaEnabled: kafkaEnabled,
		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "wastewater-viral-load"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func parseExportCacheSize() int {
	if s := os.Getenv("EXPORT_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 64
}
