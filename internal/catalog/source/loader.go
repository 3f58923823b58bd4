package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/tracing"
)

// Fetch loads bulletins, filters and categories in parallel. The load fails
// as a whole when any of the three fails. Each load gets its own span when
// ctx carries one.
func Fetch(ctx context.Context, src Source) (Data, error) {
	var data Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bulletins, err := traced(gctx, "load bulletins", src.LoadBulletins, func(m map[string][]*listing.Record) int { return len(m) })
		if err != nil {
			return fmt.Errorf("loading bulletins: %w", err)
		}
		data.Bulletins = bulletins
		return nil
	})
	g.Go(func() error {
		filters, err := traced(gctx, "load filters", src.LoadFilters, func(m map[string][]facet.Definition) int { return len(m) })
		if err != nil {
			return fmt.Errorf("loading filters: %w", err)
		}
		data.Filters = filters
		return nil
	})
	g.Go(func() error {
		categories, err := traced(gctx, "load categories", src.LoadCategories, func(c []listing.Category) int { return len(c) })
		if err != nil {
			return fmt.Errorf("loading categories: %w", err)
		}
		data.Categories = categories
		return nil
	})
	if err := g.Wait(); err != nil {
		return Data{}, err
	}
	return data, nil
}

func traced[T any](ctx context.Context, name string, load func(context.Context) (T, error), size func(T) int) (T, error) {
	if tracing.FromContext(ctx) == nil {
		return load(ctx)
	}
	ctx, span := tracing.Start(ctx, name)
	v, err := load(ctx)
	if err == nil {
		span.SetAttr("entries", size(v))
	}
	span.End(err)
	return v, err
}

// Build indexes data into a Catalog. Filter definitions with an unknown kind
// are dropped with a warning rather than failing the load.
func Build(data Data, loadedAt time.Time) *Catalog {
	logger := slog.Default().With("component", "catalog-loader")
	c := &Catalog{
		Categories: append([]listing.Category(nil), data.Categories...),
		LoadedAt:   loadedAt,
		listings:   make(map[string]*listing.Set, len(data.Categories)),
		filters:    make(map[string][]facet.Definition, len(data.Filters)),
	}
	for id, records := range data.Bulletins {
		kept := make([]*listing.Record, 0, len(records))
		for _, r := range records {
			if r != nil {
				kept = append(kept, r)
			}
		}
		c.listings[id] = listing.NewSet(id, kept)
	}
	for _, cat := range data.Categories {
		if _, ok := c.listings[cat.ID]; !ok {
			c.listings[cat.ID] = listing.NewSet(cat.ID, nil)
		}
	}
	for id, defs := range data.Filters {
		valid := make([]facet.Definition, 0, len(defs))
		for _, d := range defs {
			if !d.Kind.Valid() || d.Attribute == "" {
				logger.Warn("skipping filter definition",
					"category", id,
					"attribute", d.Attribute,
					"type", d.Kind,
				)
				continue
			}
			valid = append(valid, d)
		}
		c.filters[id] = valid
	}
	return c
}

// Load fetches and builds a Catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	data, err := Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return Build(data, time.Now()), nil
}
