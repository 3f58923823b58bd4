package store

import (
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
)

func ptr(f float64) *float64 { return &f }

func mustOptions(t *testing.T, attr string, keys ...string) facet.Active {
	t.Helper()
	f, err := facet.NewOptions(attr, facet.KindOptionSelect, keys...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestAddProducesNewSnapshot(t *testing.T) {
	s := NewActiveFilters()
	before := s.Snapshot()
	if err := s.Add(mustOptions(t, "fuel", "petrol")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := s.Snapshot()
	if before == after {
		t.Error("expected a new snapshot after Add")
	}
	if before.Len() != 0 || after.Len() != 1 {
		t.Error("expected earlier snapshot to stay unchanged")
	}
	if !s.HasActive() {
		t.Error("expected HasActive after Add")
	}
}

func TestAddReplacesSameAttribute(t *testing.T) {
	s := NewActiveFilters()
	_ = s.Add(mustOptions(t, "fuel", "petrol"))
	_ = s.Add(mustOptions(t, "fuel", "diesel"))
	if s.Snapshot().Len() != 1 {
		t.Fatalf("expected one filter per attribute, got %d", s.Snapshot().Len())
	}
	f, _ := s.Get("fuel")
	if f.Options[0] != "diesel" {
		t.Errorf("expected diesel, got %v", f.Options)
	}
}

func TestAddRejectsInvalid(t *testing.T) {
	s := NewActiveFilters()
	err := s.Add(facet.Active{Attribute: "price", Kind: facet.KindRange})
	if !errors.Is(err, facet.ErrEmptyRange) {
		t.Errorf("expected ErrEmptyRange, got %v", err)
	}
}

func TestNoOpKeepsSnapshot(t *testing.T) {
	s := NewActiveFilters()
	before := s.Snapshot()
	if s.Remove("missing") {
		t.Error("expected Remove of absent filter to report false")
	}
	s.Clear()
	s.SetBoolean("delivery", false)
	if s.Snapshot() != before {
		t.Error("expected no-op mutations to keep the snapshot")
	}

	s.SetBoolean("delivery", true)
	on := s.Snapshot()
	s.SetBoolean("delivery", true)
	if s.Snapshot() != on {
		t.Error("expected re-enabling a boolean filter to keep the snapshot")
	}
}

func TestRemoveLastOptionRemovesFilter(t *testing.T) {
	s := NewActiveFilters()
	_ = s.Add(mustOptions(t, "year", "2019", "2020"))
	if !s.RemoveOption("year", "2019") {
		t.Fatal("expected option to be removed")
	}
	f, ok := s.Get("year")
	if !ok || len(f.Options) != 1 || f.Options[0] != "2020" {
		t.Fatalf("unexpected filter %+v", f)
	}
	if !s.RemoveOption("year", "2020") {
		t.Fatal("expected last option to be removed")
	}
	if _, ok := s.Get("year"); ok {
		t.Error("expected filter to be removed with its last option")
	}
	if s.RemoveOption("year", "2020") {
		t.Error("expected removing from absent filter to report false")
	}
}

func TestRemoveOptionDoesNotMutateOldSnapshot(t *testing.T) {
	s := NewActiveFilters()
	_ = s.Add(mustOptions(t, "year", "2019", "2020", "2021"))
	old := s.Snapshot()
	s.RemoveOption("year", "2019")
	f, _ := old.Get("year")
	if len(f.Options) != 3 || f.Options[0] != "2019" {
		t.Errorf("old snapshot changed: %v", f.Options)
	}
}

func TestUpdate(t *testing.T) {
	s := NewActiveFilters()
	_ = s.Add(mustOptions(t, "fuel", "petrol", "diesel"))
	if !s.Update("fuel", "electric") {
		t.Fatal("expected update to apply")
	}
	f, _ := s.Get("fuel")
	if len(f.Options) != 1 || f.Options[0] != "electric" {
		t.Errorf("unexpected options %v", f.Options)
	}
	snap := s.Snapshot()
	if s.Update("fuel", "electric") || s.Snapshot() != snap {
		t.Error("expected same value update to be a no-op")
	}
	if !s.Update("fuel", "") {
		t.Fatal("expected empty update to remove")
	}
	if s.HasActive() {
		t.Error("expected filter to be removed")
	}
}

func TestSetRange(t *testing.T) {
	s := NewActiveFilters()
	if err := s.SetRange("sell.priceNum", ptr(100), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetRange("sell.priceNum", ptr(100), ptr(500)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, _ := s.Get("sell.priceNum")
	if *f.Range.Min != 100 || *f.Range.Max != 500 {
		t.Errorf("unexpected range %+v", f.Range)
	}
	if err := s.SetRange("sell.priceNum", ptr(600), ptr(500)); !errors.Is(err, facet.ErrInvertedRange) {
		t.Errorf("expected ErrInvertedRange, got %v", err)
	}
	if err := s.SetRange("sell.priceNum", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.HasActive() {
		t.Error("expected clearing both bounds to remove the filter")
	}
}

func TestClear(t *testing.T) {
	s := NewActiveFilters()
	s.SetBoolean("delivery", true)
	_ = s.Add(mustOptions(t, "fuel", "petrol"))
	s.Clear()
	if s.HasActive() {
		t.Error("expected no filters after Clear")
	}
}

func TestSortPreference(t *testing.T) {
	s := NewSortPreference(nil)
	if !s.IsDefault() || s.Current() != nil || s.Title() != DefaultSortTitle {
		t.Error("expected default sort initially")
	}
	if err := s.Set("price_asc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := s.Current()
	if err := s.Set("price_asc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Current() != first {
		t.Error("expected reselecting the same option to keep its identity")
	}
	if s.Title() != "Price: low to high" {
		t.Errorf("unexpected title %q", s.Title())
	}
	if err := s.Set("by_color"); !errors.Is(err, ErrUnknownSort) {
		t.Errorf("expected ErrUnknownSort, got %v", err)
	}
	if s.Current() != first {
		t.Error("expected failed Set to keep the current option")
	}
	s.Reset()
	if !s.IsDefault() {
		t.Error("expected default after Reset")
	}
	if len(s.Available()) != 3 {
		t.Errorf("expected 3 available options, got %d", len(s.Available()))
	}
}
