// Package formatcache memoizes header format inference. Files downloaded
// from the same ODP dataset share one header, so a run over many files
// parses it once.
package formatcache

import (
	"fmt"

	"github.com/couchcryptid/met-odp-etl/internal/domain"
	"github.com/couchcryptid/met-odp-etl/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a thread-safe LRU of formats keyed by header line.
// It implements csvio.FormatParser.
type Cache struct {
	formats *lru.Cache[string, domain.CsvFormat]
	metrics *observability.Metrics
}

// New creates a cache holding up to size formats.
func New(size int, metrics *observability.Metrics) (*Cache, error) {
	formats, err := lru.New[string, domain.CsvFormat](size)
	if err != nil {
		return nil, fmt.Errorf("format cache: %w", err)
	}
	return &Cache{formats: formats, metrics: metrics}, nil
}

// ParseFormat returns the cached format for header, inferring and storing
// it on a miss. Failed inferences are not cached.
func (c *Cache) ParseFormat(header string) (domain.CsvFormat, error) {
	if format, ok := c.formats.Get(header); ok {
		c.metrics.FormatCache.WithLabelValues("hit").Inc()
		return format, nil
	}
	c.metrics.FormatCache.WithLabelValues("miss").Inc()

	format, err := domain.ParseCsvFormat(header)
	if err != nil {
		return domain.CsvFormat{}, err
	}
	c.formats.Add(header, format)
	return format, nil
}

// Len returns the number of cached formats.
func (c *Cache) Len() int { return c.formats.Len() }
