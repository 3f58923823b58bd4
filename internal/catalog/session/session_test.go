package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/sorting"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/source"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
)

func testCatalog(n int) *source.Catalog {
	records := make([]*listing.Record, n)
	for i := range records {
		brand := "Yamaha"
		if i%2 == 1 {
			brand = "BRP"
		}
		records[i] = listing.NewRecord(map[string]listing.Value{
			listing.AttrID:        listing.Number(float64(i + 1)),
			listing.AttrRelevance: listing.Number(float64(i)),
			listing.AttrPrice:     listing.Number(float64((n - i) * 1000)),
			"brand":               listing.String(brand),
			"hasImages":           listing.Bool(i%4 == 0),
		})
	}
	return source.Build(source.Data{
		Categories: []listing.Category{
			{ID: "371", Title: "Hydrocycles", Slug: "hydrocycles"},
			{ID: "373", Title: "Boat motors", Slug: "boat-motors"},
		},
		Bulletins: map[string][]*listing.Record{"371": records},
		Filters: map[string][]facet.Definition{
			"371": {
				{Attribute: listing.AttrPrice, Title: "Price", Kind: facet.KindRange},
				{Attribute: "brand", Title: "Brand", Kind: facet.KindOptionSelectSearch, Options: map[string]string{"yamaha": "Yamaha", "brp": "BRP"}},
				{Attribute: "hasImages", Title: "With photo", Kind: facet.KindBoolean},
			},
		},
	}, time.Now())
}

func newTestManager() *Manager {
	return NewManager(config.SessionConfig{TTL: time.Minute, MaxSessions: 3}, Options{PageSize: 15})
}

func mustCreate(t *testing.T, m *Manager, c *source.Catalog) *Session {
	t.Helper()
	s, err := m.Create(c, "hydrocycles", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return s
}

func ptr(f float64) *float64 { return &f }

func TestInfiniteScroll(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(40))

	v := s.View()
	if v.Total != 40 || v.Revealed != 15 || !v.HasMore || len(v.Listings) != 15 {
		t.Fatalf("unexpected initial view %+v", v)
	}
	// relevance order: highest dateRelevance first
	if v.Listings[0].ID() != "40" {
		t.Errorf("expected most relevant first, got %s", v.Listings[0].ID())
	}

	seen := make(map[string]bool)
	for _, r := range v.Listings {
		seen[r.ID()] = true
	}
	for _, want := range []int{15, 10} {
		page := s.LoadMore()
		if len(page.Listings) != want {
			t.Fatalf("expected page of %d, got %d", want, len(page.Listings))
		}
		for _, r := range page.Listings {
			if seen[r.ID()] {
				t.Fatalf("listing %s revealed twice", r.ID())
			}
			seen[r.ID()] = true
		}
	}
	last := s.LoadMore()
	if len(last.Listings) != 0 || last.View.HasMore || last.View.Revealed != 40 || last.View.Pages != 3 {
		t.Errorf("expected terminal no-op, got %+v", last.View)
	}
	if len(seen) != 40 {
		t.Errorf("expected all 40 listings revealed, got %d", len(seen))
	}
}

func TestFilterResetsWindow(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(40))
	s.LoadMore()

	f, err := facet.NewRange(listing.AttrPrice, ptr(5000), ptr(24000))
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.ApplyFilter(f)
	if err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	if v.Total != 20 || v.Original != 40 || v.Revealed != 15 || len(v.Filters) != 1 {
		t.Errorf("unexpected filtered view: total=%d original=%d revealed=%d filters=%d", v.Total, v.Original, v.Revealed, len(v.Filters))
	}
	for _, r := range v.Listings {
		if p := r.Price(); p < 5000 || p > 24000 {
			t.Errorf("listing %s price %v outside range", r.ID(), p)
		}
	}

	brp, _ := facet.NewOptions("brand", facet.KindOptionSelect, "BRP")
	v, err = s.ApplyFilter(brp)
	if err == nil {
		t.Fatal("expected unknown option key to be rejected")
	}

	brp, _ = facet.NewOptions("brand", facet.KindOptionSelect, "brp")
	v, err = s.ApplyFilter(brp)
	if err != nil {
		t.Fatalf("ApplyFilter brand: %v", err)
	}
	if v.Total != 10 {
		t.Errorf("expected conjunction of price and brand to leave 10, got %d", v.Total)
	}
	if v.Filters[1].Kind != facet.KindOptionSelectSearch {
		t.Errorf("expected kind adopted from definition, got %s", v.Filters[1].Kind)
	}

	v = s.RemoveOption("brand", "brp")
	if len(v.Filters) != 1 || v.Total != 20 {
		t.Errorf("removing the last option should drop the filter: %+v", v.Filters)
	}
	v = s.ClearFilters()
	if v.Total != 40 || len(v.Filters) != 0 {
		t.Errorf("expected all listings after clear, got %d", v.Total)
	}
}

func TestApplyFilterValidation(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(4))
	cases := map[string]facet.Active{
		"unknown attribute": facet.NewBoolean("delivery"),
		"kind mismatch":     facet.NewBoolean(listing.AttrPrice),
	}
	for name, f := range cases {
		if _, err := s.ApplyFilter(f); !errors.Is(err, apperrors.ErrInvalidFilter) {
			t.Errorf("%s: expected ErrInvalidFilter, got %v", name, err)
		}
	}
	inverted := facet.Active{Attribute: listing.AttrPrice, Kind: facet.KindRange, Range: facet.Range{Min: ptr(10), Max: ptr(1)}}
	if _, err := s.ApplyFilter(inverted); !errors.Is(err, apperrors.ErrInvalidFilter) {
		t.Errorf("inverted range: expected ErrInvalidFilter, got %v", err)
	}
	if v := s.View(); len(v.Filters) != 0 {
		t.Error("rejected filters must not change state")
	}
}

func TestBooleanFilter(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(40))
	v, err := s.ApplyFilter(facet.NewBoolean("hasImages"))
	if err != nil {
		t.Fatal(err)
	}
	if v.Total != 10 {
		t.Errorf("expected 10 listings with images, got %d", v.Total)
	}
	if v = s.RemoveFilter("hasImages"); v.Total != 40 {
		t.Errorf("expected removal to restore all listings, got %d", v.Total)
	}
	if v = s.RemoveFilter("hasImages"); v.Total != 40 {
		t.Error("removing an absent filter must be harmless")
	}
}

func TestValuesThatSelectNothingRemoveFilters(t *testing.T) {
	var ops []string
	m := NewManager(config.SessionConfig{TTL: time.Minute, MaxSessions: 3}, Options{
		PageSize: 15,
		Hooks:    Hooks{FilterChanged: func(op string) { ops = append(ops, op) }},
	})
	s := mustCreate(t, m, testCatalog(40))

	if _, err := s.ApplyFilter(facet.Active{Attribute: listing.AttrPrice, Kind: facet.KindRange, Range: facet.Range{Max: ptr(10000)}}); err != nil {
		t.Fatal(err)
	}
	v, err := s.ApplyFilter(facet.Active{Attribute: listing.AttrPrice, Kind: facet.KindRange})
	if err != nil {
		t.Fatalf("clearing both bounds: %v", err)
	}
	if v.Total != 40 || len(v.Filters) != 0 {
		t.Errorf("a range without bounds should remove the filter, got total %d filters %d", v.Total, len(v.Filters))
	}

	if _, err := s.ApplyFilter(facet.Active{Attribute: "brand", Kind: facet.KindOptionSelect, Options: []string{"yamaha", "brp"}}); err != nil {
		t.Fatal(err)
	}
	v, err = s.ApplyFilter(facet.Active{Attribute: "brand", Kind: facet.KindOptionSelect, Options: []string{"brp"}})
	if err != nil {
		t.Fatal(err)
	}
	if v.Total != 20 || len(v.Filters) != 1 || len(v.Filters[0].Options) != 1 || v.Filters[0].Options[0] != "brp" {
		t.Errorf("a single option should replace the selection, got %+v", v.Filters)
	}
	before := s.filters.Snapshot()
	if _, err := s.ApplyFilter(facet.Active{Attribute: "brand", Kind: facet.KindOptionSelect, Options: []string{"brp"}}); err != nil {
		t.Fatal(err)
	}
	if s.filters.Snapshot() != before {
		t.Error("re-selecting the same option must keep the filter set")
	}
	v, err = s.ApplyFilter(facet.Active{Attribute: "brand", Kind: facet.KindOptionSelect})
	if err != nil {
		t.Fatalf("clearing options: %v", err)
	}
	if v.Total != 40 || len(v.Filters) != 0 {
		t.Errorf("an option filter without options should be removed, got %+v", v.Filters)
	}

	want := []string{"apply", "remove", "apply", "apply", "remove"}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("filter changes = %v, want %v", ops, want)
	}
}

func TestSetBoolean(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(40))

	v, err := s.SetBoolean("hasImages", true)
	if err != nil || v.Total != 10 {
		t.Fatalf("on: total %d, err %v", v.Total, err)
	}
	before := s.filters.Snapshot()
	if _, err := s.SetBoolean("hasImages", true); err != nil || s.filters.Snapshot() != before {
		t.Errorf("switching on twice must keep the filter set, err %v", err)
	}
	if v, err = s.SetBoolean("hasImages", false); err != nil || v.Total != 40 || len(v.Filters) != 0 {
		t.Errorf("off: total %d, err %v", v.Total, err)
	}

	if _, err := s.ApplyFilter(facet.Active{Attribute: "brand", Kind: facet.KindOptionSelect, Options: []string{"yamaha"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetBoolean("brand", false); !errors.Is(err, apperrors.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for a non-boolean filter, got %v", err)
	}
	if _, err := s.SetBoolean("delivery", false); !errors.Is(err, apperrors.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter for an unknown filter, got %v", err)
	}
	if v := s.View(); v.Total != 20 || len(v.Filters) != 1 {
		t.Errorf("the option filter must survive, got total %d", v.Total)
	}
}

func TestSort(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(20))
	v, err := s.SetSort(string(sorting.PriceAscending))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(v.Listings); i++ {
		if v.Listings[i-1].Price() > v.Listings[i].Price() {
			t.Fatalf("not ascending at %d", i)
		}
	}
	if v.SortTitle != "Price: low to high" || v.Sort == nil {
		t.Errorf("unexpected sort state %q %v", v.SortTitle, v.Sort)
	}
	if _, err := s.SetSort("cheapest"); !errors.Is(err, apperrors.ErrUnknownSort) {
		t.Errorf("expected ErrUnknownSort, got %v", err)
	}
	v = s.ResetSort()
	if v.Sort != nil || v.SortTitle != "Sort" || v.Listings[0].ID() != "20" {
		t.Errorf("expected relevance order after reset, got %+v", v.Sort)
	}
}

func TestRepeatedViewsHitPipelineCache(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(20))
	_, missesBefore := s.PipelineStats()
	s.View()
	s.View()
	s.LoadMore()
	hits, misses := s.PipelineStats()
	if misses != missesBefore || hits < 3 {
		t.Errorf("expected only cache hits, got hits=%d misses=%d (before %d)", hits, misses, missesBefore)
	}

	s.SetSort(string(sorting.PriceDescending))
	s.SetSort(string(sorting.PriceDescending))
	_, after := s.PipelineStats()
	if after != misses+1 {
		t.Errorf("re-selecting the same sort should not recompute: misses %d -> %d", misses, after)
	}
}

func TestFacetsActiveFirst(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(4))
	if _, err := s.ApplyFilter(facet.NewBoolean("hasImages")); err != nil {
		t.Fatal(err)
	}
	facets := s.Facets()
	if len(facets) != 3 || facets[0].Attribute != "hasImages" || facets[0].Active == nil {
		t.Fatalf("expected active facet first, got %+v", facets)
	}
	if facets[1].Active != nil || facets[1].Attribute != listing.AttrPrice {
		t.Errorf("inactive facets keep declaration order, got %+v", facets[1])
	}
}

func TestConcurrentLoadMore(t *testing.T) {
	s := mustCreate(t, newTestManager(), testCatalog(100))
	var mu sync.Mutex
	seen := make(map[string]int)
	for _, r := range s.View().Listings {
		seen[r.ID()]++
	}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page := s.LoadMore()
			mu.Lock()
			for _, r := range page.Listings {
				seen[r.ID()]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 100 {
		t.Errorf("expected 100 distinct listings, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("listing %s revealed %d times", id, n)
		}
	}
}

func TestManagerLifecycle(t *testing.T) {
	c := testCatalog(4)
	var counts []int
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(config.SessionConfig{TTL: time.Minute, MaxSessions: 2}, Options{OnCount: func(n int) { counts = append(counts, n) }})
	m.now = func() time.Time { return now }

	if _, err := m.Create(c, "yachts", 0); !errors.Is(err, apperrors.ErrCategoryNotFound) {
		t.Errorf("expected ErrCategoryNotFound, got %v", err)
	}
	if _, err := m.Create(c, "371", -1); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	a, err := m.Create(c, "371", 2)
	if err != nil {
		t.Fatal(err)
	}
	if v := a.View(); v.PageSize != 2 || v.Revealed != 2 {
		t.Errorf("expected custom page size, got %+v", v)
	}
	empty, err := m.Create(c, "Boat motors", 0)
	if err != nil {
		t.Fatal(err)
	}
	if v := empty.View(); v.Total != 0 || v.HasMore || len(v.Listings) != 0 || v.PageSize != 15 {
		t.Errorf("unexpected empty-category view %+v", v)
	}
	if _, err := m.Create(c, "371", 0); !errors.Is(err, apperrors.ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}

	now = now.Add(45 * time.Second)
	if _, err := m.Get(a.ID); err != nil {
		t.Fatal(err)
	}
	now = now.Add(30 * time.Second)
	if removed := m.Sweep(); removed != 1 {
		t.Errorf("expected only the idle session evicted, got %d", removed)
	}
	if _, err := m.Get(empty.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expected evicted session to be gone, got %v", err)
	}
	if err := m.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(a.ID); !errors.Is(err, apperrors.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected no sessions, got %d", m.Len())
	}
	if fmt.Sprint(counts) != "[1 2 1 0]" {
		t.Errorf("unexpected session counts %v", counts)
	}
}
