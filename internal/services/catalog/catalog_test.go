package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSource struct {
	faqCalls     int32
	serviceCalls int32
	delay        time.Duration
	err          error
	faq          []models.FAQEntry
	services     []models.Service
}

func (s *fakeSource) ListFAQ(ctx context.Context, _ string) ([]models.FAQEntry, error) {
	atomic.AddInt32(&s.faqCalls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.faq, s.err
}

func (s *fakeSource) ListServices(ctx context.Context, _ string) ([]models.Service, error) {
	atomic.AddInt32(&s.serviceCalls, 1)
	return s.services, s.err
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testServices() []models.Service {
	p := 80.0
	return []models.Service{
		{ID: "s1", TenantID: "t1", Name: "Teeth Cleaning", Price: &p, Keywords: []string{"limpieza", "hygiene"}},
		{ID: "s2", TenantID: "t1", Name: "Whitening", Description: "Laser whitening session"},
		{ID: "s3", TenantID: "t1", Name: "Root Canal"},
		{ID: "s4", TenantID: "t1", Name: "Cleaning"},
	}
}

// ==========================
// Table loading
// ==========================

func TestCatalog_FAQ_LoadsOnceAndCaches(t *testing.T) {
	mr, rdb := setupRedis(t)
	src := &fakeSource{faq: []models.FAQEntry{{ID: "f1", TenantID: "t1", Question: "Hours?", Answer: "8-6"}}}
	c, err := New(&Config{CacheTTL: time.Minute}, rdb, src, logger.NewTestLogger(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		entries, err := c.FAQ(context.Background(), "t1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.faqCalls))
	assert.True(t, mr.Exists("faq:t1"))
	assert.InDelta(t, time.Minute.Seconds(), mr.TTL("faq:t1").Seconds(), 1)
}

func TestCatalog_RedisHitSkipsSource(t *testing.T) {
	mr, rdb := setupRedis(t)
	data, _ := json.Marshal(testServices())
	require.NoError(t, mr.Set("services:t1", string(data)))

	src := &fakeSource{}
	c, err := New(nil, rdb, src, nil)
	require.NoError(t, err)

	services, err := c.Services(context.Background(), "t1")

	require.NoError(t, err)
	assert.Len(t, services, 4)
	assert.Zero(t, atomic.LoadInt32(&src.serviceCalls))
}

func TestCatalog_StaleServedWhenRefreshFails(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	src := &fakeSource{services: testServices()}
	c, err := New(&Config{CacheTTL: time.Minute}, nil, src, logger.NewTestLogger(t), WithClock(clk.Now))
	require.NoError(t, err)

	_, err = c.Services(context.Background(), "t1")
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	src.err = errors.New("postgres down")

	services, err := c.Services(context.Background(), "t1")

	require.NoError(t, err)
	assert.Len(t, services, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.serviceCalls))
}

func TestCatalog_UnavailableWithoutSnapshot(t *testing.T) {
	c, err := New(nil, nil, &fakeSource{err: errors.New("postgres down")}, nil)
	require.NoError(t, err)

	_, err = c.FAQ(context.Background(), "t1")

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestCatalog_ConcurrentRefreshIsShared(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond, faq: []models.FAQEntry{{ID: "f1"}}}
	c, err := New(nil, nil, src, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entries, err := c.FAQ(context.Background(), "t1")
			assert.NoError(t, err)
			assert.Len(t, entries, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.faqCalls))
}

func TestCatalog_SharedRefreshOutlivesFirstCallerDeadline(t *testing.T) {
	src := &fakeSource{delay: 80 * time.Millisecond, faq: []models.FAQEntry{{ID: "f1"}}}
	c, err := New(&Config{RefreshTimeout: time.Second}, nil, src, logger.NewTestLogger(t))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var shortErr, longErr error
	var longEntries []models.FAQEntry

	wg.Add(2)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, shortErr = c.FAQ(ctx, "t1")
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		longEntries, longErr = c.FAQ(context.Background(), "t1")
	}()
	wg.Wait()

	require.Error(t, shortErr)
	assert.ErrorIs(t, shortErr, ErrCatalogUnavailable)
	assert.Contains(t, shortErr.Error(), context.DeadlineExceeded.Error())

	require.NoError(t, longErr)
	assert.Len(t, longEntries, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.faqCalls))

	// The snapshot is in place for later turns.
	entries, err := c.FAQ(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.faqCalls))
}

func TestCatalog_RefreshTimeoutBoundsSource(t *testing.T) {
	src := &fakeSource{delay: time.Second, faq: []models.FAQEntry{{ID: "f1"}}}
	c, err := New(&Config{RefreshTimeout: 20 * time.Millisecond}, nil, src, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.FAQ(context.Background(), "t1")

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestCatalog_SeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.yaml")
	seed := `
faq:
  - id: hours
    tenant_id: t1
    question: What are your opening hours?
    answer: Monday to Friday, 8am to 6pm.
    tags: [hours, schedule]
    priority: 10
  - id: parking
    tenant_id: t2
    question: Is there parking?
    answer: Yes, behind the building.
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	src := &fakeSource{}
	c, err := New(&Config{FAQSeedPath: path}, nil, src, logger.NewTestLogger(t))
	require.NoError(t, err)

	entries, err := c.FAQ(context.Background(), "t1")

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hours", entries[0].ID)
	assert.Equal(t, []string{"hours", "schedule"}, entries[0].Tags)
	assert.Equal(t, 10, entries[0].Priority)
	assert.Zero(t, atomic.LoadInt32(&src.faqCalls))

	_, err = New(&Config{FAQSeedPath: filepath.Join(t.TempDir(), "missing.yaml")}, nil, src, nil)
	assert.Error(t, err)
}

func TestCatalog_Warm(t *testing.T) {
	src := &fakeSource{services: testServices()}
	c, err := New(nil, nil, src, nil)
	require.NoError(t, err)

	require.NoError(t, c.Warm(context.Background(), "t1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.faqCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.serviceCalls))
}

// ==========================
// Service matching
// ==========================

func TestMatchServices(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{"exact name first", "cleaning", 5, []string{"s4", "s1"}},
		{"keyword", "limpieza", 5, []string{"s1"}},
		{"description", "laser", 5, []string{"s2"}},
		{"fuzzy typo", "whtning", 5, []string{"s2"}},
		{"limit respected", "cleaning", 1, []string{"s4"}},
		{"no match", "orthodontics", 5, nil},
		{"empty query", "  ", 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchServices(testServices(), tt.query, tt.limit)
			var ids []string
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_SearchServices(t *testing.T) {
	src := &fakeSource{services: testServices()}
	c, err := New(nil, nil, src, nil)
	require.NoError(t, err)

	services, err := c.SearchServices(context.Background(), models.ServiceQuery{TenantID: "t1", Query: "Root Canal", Limit: 5})

	require.NoError(t, err)
	require.Len(t, services, 1)
	assert.Equal(t, "s3", services[0].ID)

	failing, err := New(nil, nil, &fakeSource{err: errors.New("down")}, nil)
	require.NoError(t, err)
	_, err = failing.SearchServices(context.Background(), models.ServiceQuery{TenantID: "t1", Query: "x"})
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
