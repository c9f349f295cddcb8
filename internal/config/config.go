package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InputPaths []string
	OutputDir  string
	OutputZip  bool
	Output     FormatOptions
	// OutputFormat is Output resolved into a dialect.
	OutputFormat domain.CsvFormat

	StationFilter       string
	StationFilterInvert bool
	// RecordFilter is nil when STATION_FILTER is blank.
	RecordFilter *domain.RecordFilter

	Strict          bool
	BatchSize       int
	FormatCacheSize int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	SQLitePath string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// FormatOptions describe an output dialect in the terms users configure it.
type FormatOptions struct {
	Align     bool
	Delimiter string
	Missing   string
	Info      bool
	Values    bool
	Q         bool
	EOR       bool
	Include   string
	Exclude   string
}

// DefaultFormatOptions reproduce the layout of unmodified ODP files.
func DefaultFormatOptions() FormatOptions {
	return FormatOptions{
		Align:     true,
		Delimiter: ";",
		Missing:   "-999",
		Info:      true,
		Values:    true,
		Q:         true,
		EOR:       true,
	}
}

// Build resolves the options into a CsvFormat.
func (o FormatOptions) Build() (domain.CsvFormat, error) {
	if utf8.RuneCountInString(o.Delimiter) != 1 {
		return domain.CsvFormat{}, fmt.Errorf("delimiter must be a single character, got %q", o.Delimiter)
	}
	ch, _ := utf8.DecodeRuneInString(o.Delimiter)
	delim, err := domain.NewDelimiter(ch)
	if err != nil {
		return domain.CsvFormat{}, err
	}
	missing, err := domain.ParseMissingValue(o.Missing)
	if err != nil {
		return domain.CsvFormat{}, err
	}
	filter, err := domain.ParseFieldFilter(o.Include, o.Exclude)
	if err != nil {
		return domain.CsvFormat{}, err
	}
	return domain.CsvFormat{
		Aligned:   o.Align,
		Missing:   missing,
		Delimiter: delim,
		Fields:    domain.NewFieldConfig(o.Info, o.Values, o.Q, o.EOR, filter),
	}, nil
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("FORMAT_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputPaths:      parseList(os.Getenv("INPUT_PATHS")),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "out"),
		StationFilter:   os.Getenv("STATION_FILTER"),
		BatchSize:       batchSize,
		FormatCacheSize: cacheSize,
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "met-observations"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	defaults := DefaultFormatOptions()
	cfg.Output = FormatOptions{
		Delimiter: sharedcfg.EnvOrDefault("OUTPUT_DELIMITER", defaults.Delimiter),
		Missing:   envOrDefaultAllowEmpty("OUTPUT_MISSING", defaults.Missing),
		Include:   os.Getenv("FIELD_INCLUDE"),
		Exclude:   os.Getenv("FIELD_EXCLUDE"),
	}

	bools := []struct {
		key string
		def bool
		dst *bool
	}{
		{"OUTPUT_ALIGN", defaults.Align, &cfg.Output.Align},
		{"OUTPUT_INFO", defaults.Info, &cfg.Output.Info},
		{"OUTPUT_VALUES", defaults.Values, &cfg.Output.Values},
		{"OUTPUT_Q", defaults.Q, &cfg.Output.Q},
		{"OUTPUT_EOR", defaults.EOR, &cfg.Output.EOR},
		{"OUTPUT_ZIP", false, &cfg.OutputZip},
		{"STATION_FILTER_INVERT", false, &cfg.StationFilterInvert},
		{"STRICT", false, &cfg.Strict},
		{"KAFKA_ENABLED", false, &cfg.KafkaEnabled},
	}
	for _, b := range bools {
		v, err := parseBool(b.key, b.def)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	cfg.OutputFormat, err = cfg.Output.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid output format (OUTPUT_*, FIELD_INCLUDE, FIELD_EXCLUDE): %w", err)
	}

	cfg.RecordFilter, err = domain.ParseRecordFilter(cfg.StationFilter, cfg.StationFilterInvert)
	if err != nil {
		return nil, fmt.Errorf("invalid STATION_FILTER: %w", err)
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// Validate checks the settings only the long-running service needs.
func (c *Config) Validate() error {
	if len(c.InputPaths) == 0 {
		return errors.New("INPUT_PATHS is required")
	}
	return nil
}

func parseList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return v, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// envOrDefaultAllowEmpty distinguishes a key set to "" from an unset key.
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
