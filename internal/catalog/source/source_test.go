package source

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/resilience"
)

const (
	bulletinsJSON = `{
		"371": [
			{"bulletin.id": 1, "subject": "Sea-Doo GTI", "sell.priceNum": 900000, "dateRelevance": 5, "hasImages": true,
			 "images": [{"url": "https://img/1.jpg", "width": 640, "height": 480}]},
			{"bulletin.id": 2, "subject": "Yamaha VX", "sell.priceNum": 1200000, "dateRelevance": 9, "hasImages": false}
		],
		"373": [
			{"bulletin.id": 3, "subject": "Mercury 9.9", "sell.priceNum": 250000, "dateRelevance": 1, "boatEngine.fuelType": "Petrol"}
		]
	}`
	filtersJSON = `{
		"371": [
			{"attributeName": "sell.priceNum", "title": "Price", "type": "range", "measureUnit": "RUB"},
			{"attributeName": "hasImages", "title": "With photo", "type": "boolean"},
			{"attributeName": "mystery", "title": "Broken", "type": "slider"}
		],
		"373": [
			{"attributeName": "boatEngine.fuelType", "title": "Fuel", "type": "optionSelect", "options": {"petrol": "Petrol", "diesel": "Diesel"}}
		]
	}`
	dirsJSON = `[
		{"id": "371", "title": "Hydrocycles", "slug": "hydrocycles"},
		{"id": "373", "title": "Boat motors", "slug": "boat-motors"},
		{"id": "380", "title": "Trailers", "slug": "trailers"}
	]`
)

func stubFS() fstest.MapFS {
	return fstest.MapFS{
		BulletinsFile:  {Data: []byte(bulletinsJSON)},
		FiltersFile:    {Data: []byte(filtersJSON)},
		CategoriesFile: {Data: []byte(dirsJSON)},
	}
}

func TestLoadFromDir(t *testing.T) {
	c, err := Load(context.Background(), NewDir(stubFS()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Categories) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(c.Categories))
	}
	if got := c.Listings("371").IDs(); strings.Join(got, ",") != "1,2" {
		t.Errorf("371 listings = %v", got)
	}
	if c.Listings("380") == nil || c.Listings("380").Len() != 0 {
		t.Error("category without listings should get an empty set")
	}
	if c.Listings("999") != nil {
		t.Error("unknown category should have no set")
	}
	if c.Listings("371") != c.Listings("371") {
		t.Error("listing set identity must be stable within a catalog")
	}
	if n := len(c.Filters("371")); n != 2 {
		t.Errorf("expected invalid definition to be dropped, got %d filters", n)
	}
	if got := c.Counts(); got["371"] != 2 || got["373"] != 1 || got["380"] != 0 {
		t.Errorf("unexpected counts %v", got)
	}
	r := c.Listings("371").At(0)
	if len(r.Images) != 1 || r.Images[0].Width != 640 {
		t.Errorf("images not decoded: %+v", r.Images)
	}
}

func TestCatalogCategoryLookup(t *testing.T) {
	c, err := Load(context.Background(), NewDir(stubFS()))
	if err != nil {
		t.Fatal(err)
	}
	for _, ref := range []string{"373", "boat-motors", "BOAT MOTORS"} {
		cat, err := c.Category(ref)
		if err != nil || cat.ID != "373" {
			t.Errorf("Category(%q) = %+v, %v", ref, cat, err)
		}
	}
	if _, err := c.Category("yachts"); !errors.Is(err, apperrors.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
}

func TestLoadFailsWhenAnyDocumentFails(t *testing.T) {
	fsys := stubFS()
	fsys[FiltersFile] = &fstest.MapFile{Data: []byte(`{not json`)}
	if _, err := Load(context.Background(), NewDir(fsys)); err == nil || !strings.Contains(err.Error(), "filters") {
		t.Errorf("expected filters load error, got %v", err)
	}

	fsys = stubFS()
	delete(fsys, CategoriesFile)
	if _, err := Load(context.Background(), NewDir(fsys)); err == nil {
		t.Error("expected error for missing dirs.json")
	}
}

func TestGroupDocumentsKeepsOrder(t *testing.T) {
	docs := []document{
		{category: "373", body: []byte(`{"attributeName":"a","title":"A","type":"boolean"}`)},
		{category: "373", body: []byte(`{"attributeName":"b","title":"B","type":"range"}`)},
		{category: "371", body: []byte(`{"attributeName":"c","title":"C","type":"boolean"}`)},
	}
	got, err := groupDocuments[facet.Definition](docs)
	if err != nil {
		t.Fatal(err)
	}
	if len(got["373"]) != 2 || got["373"][1].Attribute != "b" || got["371"][0].Kind != facet.KindBoolean {
		t.Errorf("unexpected grouping %+v", got)
	}

	if _, err := groupDocuments[*listing.Record]([]document{{category: "1", body: []byte(`[1,2]`)}}); err == nil {
		t.Error("expected decode error")
	}
}

// countingSource counts loads and can be told to fail.
type countingSource struct {
	inner Source
	loads atomic.Int64
	fail  atomic.Bool
}

var errBackend = errors.New("backend down")

func (s *countingSource) LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error) {
	s.loads.Add(1)
	if s.fail.Load() {
		return nil, errBackend
	}
	return s.inner.LoadBulletins(ctx)
}

func (s *countingSource) LoadFilters(ctx context.Context) (map[string][]facet.Definition, error) {
	if s.fail.Load() {
		return nil, errBackend
	}
	return s.inner.LoadFilters(ctx)
}

func (s *countingSource) LoadCategories(ctx context.Context) ([]listing.Category, error) {
	if s.fail.Load() {
		return nil, errBackend
	}
	return s.inner.LoadCategories(ctx)
}

// memoryStore is an in-process stand-in for Redis.
type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryStore() *memoryStore { return &memoryStore{data: make(map[string][]byte)} }

func (m *memoryStore) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memoryStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func TestCachedServesFromStore(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	var observed atomic.Int64
	cached := NewCached(backend, newMemoryStore(), time.Minute, func(bool) { observed.Add(1) })

	first, err := Load(context.Background(), cached)
	if err != nil {
		t.Fatal(err)
	}
	backend.fail.Store(true)
	second, err := Load(context.Background(), cached)
	if err != nil {
		t.Fatalf("expected cached load to succeed with backend down: %v", err)
	}
	if backend.loads.Load() != 1 {
		t.Errorf("expected one backend bulletins load, got %d", backend.loads.Load())
	}
	if strings.Join(second.Listings("371").IDs(), ",") != strings.Join(first.Listings("371").IDs(), ",") {
		t.Error("cached catalog differs from source")
	}
	if second.Listings("371") == first.Listings("371") {
		t.Error("each load must build fresh listing sets")
	}
	hits, _ := cached.Stats()
	if hits != 3 {
		t.Errorf("expected 3 hits on second load, got %d", hits)
	}
	if observed.Load() == 0 {
		t.Error("observer not called")
	}
}

func TestCachedFallsThroughOnStoreError(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	store := newMemoryStore()
	store.err = errors.New("redis: connection refused")
	cached := NewCached(backend, store, time.Minute, nil)

	if _, err := Load(context.Background(), cached); err != nil {
		t.Fatalf("store errors must not fail the load: %v", err)
	}
	if backend.loads.Load() != 1 {
		t.Errorf("expected backend load, got %d", backend.loads.Load())
	}
}

type brokenStore struct{ calls atomic.Int64 }

func (b *brokenStore) GetJSON(context.Context, string, any) (bool, error) {
	b.calls.Add(1)
	return false, errors.New("redis: i/o timeout")
}

func (b *brokenStore) SetJSON(context.Context, string, any, time.Duration) error {
	b.calls.Add(1)
	return errors.New("redis: i/o timeout")
}

func (b *brokenStore) FlushByPattern(context.Context, string) (int64, error) {
	return 0, nil
}

func TestCachedBreakerSkipsFailingStore(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	store := &brokenStore{}
	var opened atomic.Bool
	cached := NewCached(backend, store, time.Minute, nil).WithBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		OnStateChange: func(_ string, _, to resilience.State) {
			if to == resilience.StateOpen {
				opened.Store(true)
			}
		},
	})

	if _, err := Load(context.Background(), cached); err != nil {
		t.Fatalf("store errors must not fail the load: %v", err)
	}
	if !opened.Load() {
		t.Fatal("expected the breaker to open")
	}
	before := store.calls.Load()
	if _, err := Load(context.Background(), cached); err != nil {
		t.Fatal(err)
	}
	if store.calls.Load() != before {
		t.Errorf("open breaker still reached the store: %d calls, was %d", store.calls.Load(), before)
	}
	if backend.loads.Load() != 2 {
		t.Errorf("expected both loads to hit the backend, got %d", backend.loads.Load())
	}
}

func TestCachedInvalidate(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	store := newMemoryStore()
	cached := NewCached(backend, store, time.Minute, nil)
	if _, err := Load(context.Background(), cached); err != nil {
		t.Fatal(err)
	}
	if err := cached.Invalidate(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(store.data) != 0 {
		t.Errorf("expected empty store, got %d keys", len(store.data))
	}
	if _, err := Load(context.Background(), cached); err != nil {
		t.Fatal(err)
	}
	if backend.loads.Load() != 2 {
		t.Errorf("expected reload from backend, got %d loads", backend.loads.Load())
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
}

func TestRegistryReloadSwapsCatalog(t *testing.T) {
	var reloads []error
	reg := NewRegistry(NewDir(stubFS()), RegistryConfig{
		Retry:   fastRetry(),
		Observe: func(_ *Catalog, err error) { reloads = append(reloads, err) },
	})

	if _, err := reg.Current(); !errors.Is(err, apperrors.ErrCatalogUnavailable) {
		t.Fatalf("expected unavailable before load, got %v", err)
	}
	if got := reg.Check(context.Background()); got.Status != health.StatusDown {
		t.Errorf("expected down before load, got %s", got.Status)
	}

	first, err := reg.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := reg.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	cur, _ := reg.Current()
	if cur != second || first == second {
		t.Error("reload should publish a new catalog")
	}
	if first.Listings("371") == second.Listings("371") {
		t.Error("a reload yields new listing sets")
	}
	if len(reloads) != 2 || reloads[0] != nil {
		t.Errorf("unexpected observations %v", reloads)
	}
	if got := reg.Check(context.Background()); got.Status != health.StatusUp {
		t.Errorf("expected up, got %s", got.Status)
	}
}

// stallingSource makes its first bulletins load outlive any timeout and
// ignore cancellation, then answers normally.
type stallingSource struct {
	Source
	calls   atomic.Int64
	stalled chan struct{}
}

func (s *stallingSource) LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error) {
	if s.calls.Add(1) == 1 {
		defer close(s.stalled)
		time.Sleep(80 * time.Millisecond)
		stale := listing.NewRecord(map[string]listing.Value{listing.AttrID: listing.String("stale")})
		return map[string][]*listing.Record{"371": {stale}}, nil
	}
	return s.Source.LoadBulletins(ctx)
}

func TestRegistryDiscardsTimedOutAttempt(t *testing.T) {
	src := &stallingSource{Source: NewDir(stubFS()), stalled: make(chan struct{})}
	reg := NewRegistry(src, RegistryConfig{
		Timeout: 20 * time.Millisecond,
		Retry:   resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond},
	})

	loaded, err := reg.Reload(context.Background())
	if err != nil {
		t.Fatalf("expected a later attempt to succeed: %v", err)
	}
	<-src.stalled
	time.Sleep(20 * time.Millisecond)

	cur, err := reg.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur != loaded {
		t.Fatal("a timed-out attempt replaced the published catalog")
	}
	if ids := strings.Join(cur.Listings("371").IDs(), ","); strings.Contains(ids, "stale") || cur.Listings("371").Len() != 2 {
		t.Errorf("published catalog carries the stale attempt's listings: %s", ids)
	}
}

func TestRegistryKeepsPreviousCatalogOnFailure(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	reg := NewRegistry(backend, RegistryConfig{Retry: fastRetry()})
	good, err := reg.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	backend.fail.Store(true)
	if _, err := reg.Reload(context.Background()); !errors.Is(err, apperrors.ErrCatalogUnavailable) || !errors.Is(err, errBackend) {
		t.Fatalf("expected wrapped unavailable error, got %v", err)
	}
	if cur, _ := reg.Current(); cur != good {
		t.Error("failed reload must keep the previous catalog")
	}
	if backend.loads.Load() != 3 {
		t.Errorf("expected 1 good load plus 2 attempts, got %d", backend.loads.Load())
	}
}

func TestInvalidatorReloads(t *testing.T) {
	backend := &countingSource{inner: NewDir(stubFS())}
	store := newMemoryStore()
	cached := NewCached(backend, store, time.Minute, nil)
	reg := NewRegistry(cached, RegistryConfig{Retry: fastRetry()})
	before, err := reg.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	inv := NewInvalidator(reg, cached)
	msg, _ := json.Marshal(Update{Reason: "import", RequestedAt: time.Now()})
	if err := inv.Handle(context.Background(), []byte("catalog"), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	after, _ := reg.Current()
	if after == before {
		t.Error("expected a new catalog after update")
	}
	if backend.loads.Load() != 2 {
		t.Errorf("expected cache bypass on update, got %d backend loads", backend.loads.Load())
	}
	if err := inv.Handle(context.Background(), nil, []byte("garbage")); err == nil {
		t.Error("expected decode error")
	}
}

func TestBundledStubsLoad(t *testing.T) {
	c, err := Load(context.Background(), NewDir(os.DirFS("../../../stubs")))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, ref := range []string{"hydrocycles", "boat-motors"} {
		cat, err := c.Category(ref)
		if err != nil {
			t.Fatalf("Category(%q): %v", ref, err)
		}
		if c.Listings(cat.ID).Len() == 0 {
			t.Errorf("%s has no listings", ref)
		}
		for _, d := range c.Filters(cat.ID) {
			if d.Kind.IsOption() && len(d.Options) == 0 {
				t.Errorf("%s: option filter %s has no options", ref, d.Attribute)
			}
		}
	}
}
