// Package sorting orders listing sequences by relevance or price.
package sorting

import (
	"cmp"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
)

type Value string

const (
	Relevance       Value = "relevance"
	PriceAscending  Value = "price_asc"
	PriceDescending Value = "price_desc"
)

// Option is one selectable sort order.
type Option struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Value Value  `json:"value"`
}

// Defaults lists the sort orders offered to visitors.
func Defaults() []Option {
	return []Option{
		{ID: "relevance", Title: "Most relevant", Value: Relevance},
		{ID: "price_asc", Title: "Price: low to high", Value: PriceAscending},
		{ID: "price_desc", Title: "Price: high to low", Value: PriceDescending},
	}
}

// Apply returns a sorted copy of records. A nil option or an unknown value
// orders by relevance, newest first. The sort is stable and records is never
// modified.
func Apply(records []*listing.Record, opt *Option) []*listing.Record {
	out := make([]*listing.Record, len(records))
	copy(out, records)
	slices.SortStableFunc(out, comparator(opt))
	return out
}

func comparator(opt *Option) func(a, b *listing.Record) int {
	value := Relevance
	if opt != nil {
		value = opt.Value
	}
	switch value {
	case PriceAscending:
		return func(a, b *listing.Record) int { return cmp.Compare(a.Price(), b.Price()) }
	case PriceDescending:
		return func(a, b *listing.Record) int { return cmp.Compare(b.Price(), a.Price()) }
	default:
		return func(a, b *listing.Record) int { return cmp.Compare(b.Relevance(), a.Relevance()) }
	}
}
