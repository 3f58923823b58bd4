package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/facet"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/postgres"
)

// Postgres reads the catalog from the catalog_* tables. Listings and filter
// definitions are stored as JSONB documents in their original wire shape.
type Postgres struct {
	client *postgres.Client
	logger *slog.Logger
}

func NewPostgres(client *postgres.Client) *Postgres {
	return &Postgres{
		client: client,
		logger: slog.Default().With("component", "catalog-postgres"),
	}
}

// document is one JSONB row keyed by category.
type document struct {
	category string
	body     []byte
}

func (p *Postgres) LoadBulletins(ctx context.Context) (map[string][]*listing.Record, error) {
	docs, err := p.documents(ctx, `SELECT category_id, document FROM catalog_listings ORDER BY category_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	return groupDocuments[*listing.Record](docs)
}

func (p *Postgres) LoadFilters(ctx context.Context) (map[string][]facet.Definition, error) {
	docs, err := p.documents(ctx, `SELECT category_id, definition FROM catalog_filters ORDER BY category_id, position`)
	if err != nil {
		return nil, fmt.Errorf("querying filters: %w", err)
	}
	return groupDocuments[facet.Definition](docs)
}

func (p *Postgres) LoadCategories(ctx context.Context) ([]listing.Category, error) {
	rows, err := p.client.DB.QueryContext(ctx, `SELECT id, title, slug, see_also FROM catalog_categories ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()
	var out []listing.Category
	for rows.Next() {
		var c listing.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.SeeAlso); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return out, nil
}

func (p *Postgres) documents(ctx context.Context, query string) ([]document, error) {
	rows, err := p.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []document
	for rows.Next() {
		var d document
		if err := rows.Scan(&d.category, &d.body); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// groupDocuments decodes rows already ordered by category and position.
func groupDocuments[T any](docs []document) (map[string][]T, error) {
	out := make(map[string][]T)
	for i, d := range docs {
		var v T
		if err := json.Unmarshal(d.body, &v); err != nil {
			return nil, fmt.Errorf("decoding row %d of category %s: %w", i, d.category, err)
		}
		out[d.category] = append(out[d.category], v)
	}
	return out, nil
}

// Import replaces the stored catalog with data in one transaction.
func (p *Postgres) Import(ctx context.Context, data Data) error {
	err := p.client.InTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"catalog_listings", "catalog_filters", "catalog_categories"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		for i, c := range data.Categories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog_categories (id, title, slug, see_also, position) VALUES ($1, $2, $3, $4, $5)`,
				c.ID, c.Title, c.Slug, c.SeeAlso, i,
			); err != nil {
				return fmt.Errorf("inserting category %s: %w", c.ID, err)
			}
		}
		for id, defs := range data.Filters {
			for i, d := range defs {
				body, err := json.Marshal(d)
				if err != nil {
					return fmt.Errorf("encoding filter %s: %w", d.Attribute, err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO catalog_filters (category_id, position, definition) VALUES ($1, $2, $3)`,
					id, i, body,
				); err != nil {
					return fmt.Errorf("inserting filter %s/%s: %w", id, d.Attribute, err)
				}
			}
		}
		for id, records := range data.Bulletins {
			for i, r := range records {
				body, err := json.Marshal(r)
				if err != nil {
					return fmt.Errorf("encoding listing %s: %w", r.ID(), err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO catalog_listings (category_id, position, document) VALUES ($1, $2, $3)`,
					id, i, body,
				); err != nil {
					return fmt.Errorf("inserting listing %s/%s: %w", id, r.ID(), err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.logger.Info("catalog imported",
		"categories", len(data.Categories),
		"filter_sets", len(data.Filters),
		"listing_sets", len(data.Bulletins),
	)
	return nil
}

// Ping checks database reachability for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
