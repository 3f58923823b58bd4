package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
)

// File names inside a stub directory.
const (
	BulletinsFile  = "bulletins.json"
	FiltersFile    = "filters.json"
	CategoriesFile = "dirs.json"
)

// Dir reads the catalog from JSON stub files:
//
//	bulletins.json  {"<categoryId>": [listing, ...]}
//	filters.json    {"<categoryId>": [definition, ...]}
//	dirs.json       [category, ...]
type Dir struct {
	fsys fs.FS
}

func NewDir(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

func (d *Dir) LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error) {
	var out map[string][]*listing.Record
	if err := d.decode(ctx, BulletinsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dir) LoadFilters(ctx context.Context) (map[string][]facet.Definition, error) {
	var out map[string][]facet.Definition
	if err := d.decode(ctx, FiltersFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dir) LoadCategories(ctx context.Context) ([]listing.Category, error) {
	var out []listing.Category
	if err := d.decode(ctx, CategoriesFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Dir) decode(ctx context.Context, name string, dst any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}
