// Package catalog serves per-tenant FAQ and service tables from an
// in-process snapshot backed by Redis and, behind that, Postgres or a seed file.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/metrics"
	"clinic-dispatcher/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const (
	tableFAQ      = "faq"
	tableServices = "services"

	sourceRedis    = "redis"
	sourceSeed     = "seed"
	sourcePostgres = "postgres"
)

var ErrCatalogUnavailable = errors.New("CACHE_UNAVAILABLE")

// Source is the system of record behind the cache.
type Source interface {
	ListServices(ctx context.Context, tenantID string) ([]models.Service, error)
	ListFAQ(ctx context.Context, tenantID string) ([]models.FAQEntry, error)
}

type Config struct {
	CacheTTL       time.Duration
	RefreshTimeout time.Duration
	FAQSeedPath    string
}

type snapshot[T any] struct {
	items    []T
	loadedAt time.Time
}

// Catalog never locks readers: a refresh builds a new snapshot and swaps it in.
type Catalog struct {
	config *Config
	redis  *redis.Client
	source Source
	seed   map[string][]models.FAQEntry
	logger logger.Logger
	now    func() time.Time

	faqs     sync.Map
	services sync.Map
	group    singleflight.Group
}

type Option func(*Catalog)

func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

func New(cfg *Config, rdb *redis.Client, source Source, log logger.Logger, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 2 * time.Second
	}

	c := &Catalog{
		config: cfg,
		redis:  rdb,
		source: source,
		logger: logger.ForComponent(log, "catalog"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.FAQSeedPath != "" {
		seed, err := LoadSeed(cfg.FAQSeedPath)
		if err != nil {
			return nil, err
		}
		c.seed = seed
		c.logger.Info("faq seed loaded", map[string]interface{}{
			"path":    cfg.FAQSeedPath,
			"tenants": len(seed),
		})
	}
	return c, nil
}

type seedFile struct {
	FAQ []models.FAQEntry `yaml:"faq"`
}

// LoadSeed reads a YAML file of FAQ entries and groups them by tenant.
func LoadSeed(path string) (map[string][]models.FAQEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faq seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse faq seed: %w", err)
	}

	out := make(map[string][]models.FAQEntry)
	for _, e := range f.FAQ {
		out[e.TenantID] = append(out[e.TenantID], e)
	}
	return out, nil
}

func (c *Catalog) FAQ(ctx context.Context, tenantID string) ([]models.FAQEntry, error) {
	return load(ctx, c, &c.faqs, tableFAQ, tenantID, c.fetchFAQ)
}

func (c *Catalog) Services(ctx context.Context, tenantID string) ([]models.Service, error) {
	return load(ctx, c, &c.services, tableServices, tenantID, c.fetchServices)
}

// Warm loads both tables for a tenant ahead of the first turn.
func (c *Catalog) Warm(ctx context.Context, tenantID string) error {
	if _, err := c.FAQ(ctx, tenantID); err != nil {
		return err
	}
	_, err := c.Services(ctx, tenantID)
	return err
}

type fetchFunc[T any] func(ctx context.Context, tenantID string) ([]T, string, error)

// load returns a fresh snapshot, refreshing at most once per key at a time.
// The refresh runs detached from any one caller with its own timeout; each
// caller waits only as long as its own context allows. When the refresh fails
// the previous snapshot is served regardless of age.
func load[T any](ctx context.Context, c *Catalog, tables *sync.Map, table, tenantID string, fetch fetchFunc[T]) ([]T, error) {
	var stale *snapshot[T]
	if v, ok := tables.Load(tenantID); ok {
		snap := v.(*snapshot[T])
		if c.now().Sub(snap.loadedAt) < c.config.CacheTTL {
			return snap.items, nil
		}
		stale = snap
	}

	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(table+":"+tenantID, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(refreshCtx, c.config.RefreshTimeout)
		defer cancel()

		items, source, err := fetch(fctx, tenantID)
		if err != nil {
			return nil, err
		}
		tables.Store(tenantID, &snapshot[T]{items: items, loadedAt: c.now()})
		metrics.CatalogRefreshes.WithLabelValues(table, source).Inc()
		return items, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]T), nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if stale != nil {
		c.logger.Warn("catalog refresh failed, serving stale table", map[string]interface{}{
			"table":    table,
			"tenantId": tenantID,
			"error":    err,
		})
		return stale.items, nil
	}
	return nil, fmt.Errorf("%w: %s for %s: %v", ErrCatalogUnavailable, table, tenantID, err)
}

func (c *Catalog) fetchFAQ(ctx context.Context, tenantID string) ([]models.FAQEntry, string, error) {
	key := tableFAQ + ":" + tenantID
	var entries []models.FAQEntry
	if c.getCached(ctx, key, &entries) {
		return entries, sourceRedis, nil
	}

	if c.seed != nil {
		entries = c.seed[tenantID]
		c.setCached(ctx, key, entries)
		return entries, sourceSeed, nil
	}
	if c.source == nil {
		return nil, "", errors.New("no faq source configured")
	}

	entries, err := c.source.ListFAQ(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	c.setCached(ctx, key, entries)
	return entries, sourcePostgres, nil
}

func (c *Catalog) fetchServices(ctx context.Context, tenantID string) ([]models.Service, string, error) {
	key := tableServices + ":" + tenantID
	var services []models.Service
	if c.getCached(ctx, key, &services) {
		return services, sourceRedis, nil
	}
	if c.source == nil {
		return nil, "", errors.New("no service source configured")
	}

	services, err := c.source.ListServices(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	c.setCached(ctx, key, services)
	return services, sourcePostgres, nil
}

// getCached treats every Redis problem as a miss.
func (c *Catalog) getCached(ctx context.Context, key string, out interface{}) bool {
	if c.redis == nil {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("catalog cache read failed", map[string]interface{}{"key": key, "error": err})
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		c.logger.Warn("catalog cache entry corrupt", map[string]interface{}{"key": key, "error": err})
		return false
	}
	return true
}

func (c *Catalog) setCached(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.config.CacheTTL).Err(); err != nil {
		c.logger.Debug("catalog cache write failed", map[string]interface{}{"key": key, "error": err})
	}
}
