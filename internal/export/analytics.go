// Package export reshapes cached catalog records into the schema the
// downstream analytics consumer ingests. It never calls the partner;
// everything it serves comes from the tenant's cache namespace.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"catalogsync/internal/store"
)

// Product is one row of the analytics feed. Field names follow the
// consumer's schema, not the partner's.
type Product struct {
	ProductID string      `json:"product_id"`
	Title     string      `json:"title"`
	UnitPrice json.Number `json:"unit_price,omitempty"`
	Currency  string      `json:"currency,omitempty"`
	Category  string      `json:"category,omitempty"`
	URL       string      `json:"url,omitempty"`
}

// partnerProduct is the subset of the partner's product summary the feed
// renames. Unknown fields are ignored.
type partnerProduct struct {
	SKU      string      `json:"sku"`
	Slug     string      `json:"slug"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Currency string      `json:"currency"`
	Category string      `json:"category"`
	URL      string      `json:"url"`
}

// Exporter reads a tenant's cached product list and renames it into the
// analytics schema.
type Exporter struct {
	store store.Store
}

func New(st store.Store) *Exporter {
	return &Exporter{store: st}
}

// Products returns the analytics rows for a tenant. An absent product
// list yields an empty slice, not an error; the consumer treats an empty
// feed as "nothing synced yet".
func (e *Exporter) Products(ctx context.Context, tenant string) ([]Product, error) {
	raw, err := e.store.Get(ctx, store.ProductListKey(tenant))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []Product{}, nil
		}
		return nil, fmt.Errorf("read cached product list: %w", err)
	}

	var summaries []partnerProduct
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, fmt.Errorf("decode cached product list: %w", err)
	}

	rows := make([]Product, 0, len(summaries))
	for _, s := range summaries {
		id := s.SKU
		if id == "" {
			id = s.Slug
		}
		if id == "" {
			continue
		}
		rows = append(rows, Product{
			ProductID: id,
			Title:     s.Name,
			UnitPrice: s.Price,
			Currency:  s.Currency,
			Category:  s.Category,
			URL:       s.URL,
		})
	}
	return rows, nil
}
