// Package source loads the catalog (categories, filter definitions and
// listings) from a backing store and publishes it to request handlers.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	apperrors "github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/errors"
)

// Source provides the three catalog documents. Implementations must be safe
// for concurrent use since the loader fetches all three in parallel.
type Source interface {
	LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error)
	LoadFilters(ctx context.Context) (map[string][]facet.Definition, error)
	LoadCategories(ctx context.Context) ([]listing.Category, error)
}

// Data is the raw content of a Source.
type Data struct {
	Bulletins  map[string][]*listing.Record
	Filters    map[string][]facet.Definition
	Categories []listing.Category
}

// Catalog is an immutable, fully indexed view of Data. Listing sets are built
// once per load, so every session opened on the same catalog shares the same
// *listing.Set for a category.
type Catalog struct {
	Categories []listing.Category
	LoadedAt   time.Time

	listings map[string]*listing.Set
	filters  map[string][]facet.Definition
}

// Category resolves ref by id, slug or title.
func (c *Catalog) Category(ref string) (listing.Category, error) {
	cat, ok := listing.FindCategory(c.Categories, ref)
	if !ok {
		return listing.Category{}, fmt.Errorf("%w: %q", apperrors.ErrCategoryNotFound, ref)
	}
	return cat, nil
}

// Listings returns the listing set of a category. Every known category has a
// set, possibly empty; unknown ids yield nil.
func (c *Catalog) Listings(categoryID string) *listing.Set {
	return c.listings[categoryID]
}

// Filters returns the filter definitions of a category in declaration order.
func (c *Catalog) Filters(categoryID string) []facet.Definition {
	return c.filters[categoryID]
}

// Counts reports the number of listings per category id.
func (c *Catalog) Counts() map[string]int {
	counts := make(map[string]int, len(c.listings))
	for id, set := range c.listings {
		counts[id] = set.Len()
	}
	return counts
}
