// Package pipeline orchestrates the three-stage catalog crawl: categories,
// products per category, and product detail. Stages run per tenant against
// isolated cache namespaces and tolerate per-item failures without aborting
// the run; re-running a stage is the only retry mechanism.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal/metrics"
	"catalogsync/internal/partner"
	"catalogsync/internal/store"
)

// Stage names used in logs and metrics.
const (
	StageCategories = "categories"
	StageProducts   = "products"
	StageDetails    = "details"
)

// Caller issues one signed partner call. Satisfied by *partner.Client.
type Caller interface {
	Call(ctx context.Context, tenant partner.Tenant, method, url string, body json.RawMessage) (json.RawMessage, error)
}

// TokenSource reports the tenant's cached bearer token. Satisfied by
// *partner.TokenManager.
type TokenSource interface {
	Token(ctx context.Context, tenant partner.Tenant) (string, error)
}

// Pipeline runs the crawl stages. Fan-out within a stage is bounded by the
// configured concurrency; every launched item settles before the stage
// aggregates, and failed items are dropped from the result.
type Pipeline struct {
	caller      Caller
	tokens      TokenSource
	store       store.Store
	concurrency int
	logger      *zap.Logger
}

// New constructs a Pipeline. Concurrency values below one fall back to a
// single in-flight call.
func New(caller Caller, tokens TokenSource, st store.Store, concurrency int, logger *zap.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Pipeline{
		caller:      caller,
		tokens:      tokens,
		store:       st,
		concurrency: concurrency,
		logger:      logger,
	}
}

// SyncCategories runs stage one: a single signed GET for the category
// listing. The raw payload (list or single object) is cached verbatim; on
// failure nothing is written and the error is surfaced.
func (p *Pipeline) SyncCategories(ctx context.Context, tenant partner.Tenant) (json.RawMessage, error) {
	timer := stageTimer(StageCategories)
	defer timer()

	if _, err := p.tokens.Token(ctx, tenant); err != nil {
		return nil, err
	}

	payload, err := p.caller.Call(ctx, tenant, http.MethodGet, tenant.CategoriesURL(), nil)
	if err != nil {
		return nil, err
	}
	if err := p.store.Set(ctx, store.CategoriesKey(tenant.Name), payload); err != nil {
		return nil, fmt.Errorf("cache categories: %w", err)
	}
	p.logger.Info("categories synced", zap.String("tenant", tenant.Name))
	return payload, nil
}

// SyncProducts runs stage two: one signed GET per cached category, fanned
// out under the concurrency bound. Product arrays from succeeding
// categories are flattened into one combined list; failed categories are
// dropped silently. The combined list is persisted only when at least one
// category succeeded, so a fully failed run never clobbers earlier state.
// The returned count is the number of categories processed, not products.
func (p *Pipeline) SyncProducts(ctx context.Context, tenant partner.Tenant) (int, error) {
	timer := stageTimer(StageProducts)
	defer timer()

	if _, err := p.tokens.Token(ctx, tenant); err != nil {
		return 0, err
	}

	raw, err := p.store.Get(ctx, store.CategoriesKey(tenant.Name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("no cached categories", zap.String("tenant", tenant.Name))
			return 0, nil
		}
		return 0, fmt.Errorf("read cached categories: %w", err)
	}

	categories := splitCategories(raw)
	ids := make([]string, 0, len(categories))
	for _, cat := range categories {
		id := categoryID(cat)
		if id == "" {
			p.logger.Warn("category without id skipped", zap.String("tenant", tenant.Name))
			continue
		}
		ids = append(ids, id)
	}

	var (
		mu       sync.Mutex
		combined []json.RawMessage
		count    int
	)
	p.forEach(ctx, ids, func(ctx context.Context, id string) {
		payload, err := p.caller.Call(ctx, tenant, http.MethodGet, tenant.CategoryProductsURL(id), nil)
		if err != nil {
			metrics.ObserveSyncItem(tenant.Name, StageProducts, "failed")
			p.logger.Warn("category fetch dropped",
				zap.String("tenant", tenant.Name),
				zap.String("category", id),
				zap.Error(err),
			)
			return
		}
		products := extractProducts(payload)
		mu.Lock()
		combined = append(combined, products...)
		count++
		mu.Unlock()
		metrics.ObserveSyncItem(tenant.Name, StageProducts, "success")
	})

	if count == 0 {
		return 0, nil
	}

	list, err := json.Marshal(combined)
	if err != nil {
		return 0, fmt.Errorf("encode product list: %w", err)
	}
	if err := p.store.Set(ctx, store.ProductListKey(tenant.Name), list); err != nil {
		return 0, fmt.Errorf("cache product list: %w", err)
	}
	p.logger.Info("products synced",
		zap.String("tenant", tenant.Name),
		zap.Int("categories", count),
		zap.Int("products", len(combined)),
	)
	return count, nil
}

// SyncProductDetails runs stage three: one signed GET per cached product
// summary, keyed by the tenant's configured identifier field. Each success
// is persisted under its own key; failures are dropped. Returns the number
// of detail records stored. An empty cached list yields zero without any
// outbound call.
func (p *Pipeline) SyncProductDetails(ctx context.Context, tenant partner.Tenant) (int, error) {
	timer := stageTimer(StageDetails)
	defer timer()

	if _, err := p.tokens.Token(ctx, tenant); err != nil {
		return 0, err
	}

	raw, err := p.store.Get(ctx, store.ProductListKey(tenant.Name))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("no cached product list", zap.String("tenant", tenant.Name))
			return 0, nil
		}
		return 0, fmt.Errorf("read cached product list: %w", err)
	}

	var products []json.RawMessage
	if err := json.Unmarshal(raw, &products); err != nil {
		p.logger.Warn("cached product list is not a list", zap.String("tenant", tenant.Name))
		return 0, nil
	}

	ids := make([]string, 0, len(products))
	for _, prod := range products {
		id := productIdentifier(prod, tenant.DetailKey)
		if id == "" {
			p.logger.Warn("product without identifier skipped",
				zap.String("tenant", tenant.Name),
				zap.String("detail_key", tenant.DetailKey),
			)
			continue
		}
		ids = append(ids, id)
	}

	var (
		mu    sync.Mutex
		count int
	)
	p.forEach(ctx, ids, func(ctx context.Context, id string) {
		payload, err := p.caller.Call(ctx, tenant, http.MethodGet, tenant.ProductURL(id), nil)
		if err != nil {
			metrics.ObserveSyncItem(tenant.Name, StageDetails, "failed")
			p.logger.Warn("product detail dropped",
				zap.String("tenant", tenant.Name),
				zap.String("product", id),
				zap.Error(err),
			)
			return
		}
		if err := p.store.Set(ctx, store.ProductKey(tenant.Name, id), payload); err != nil {
			metrics.ObserveSyncItem(tenant.Name, StageDetails, "failed")
			p.logger.Warn("product detail store failed",
				zap.String("tenant", tenant.Name),
				zap.String("product", id),
				zap.Error(err),
			)
			return
		}
		mu.Lock()
		count++
		mu.Unlock()
		metrics.ObserveSyncItem(tenant.Name, StageDetails, "success")
	})

	p.logger.Info("product details synced",
		zap.String("tenant", tenant.Name),
		zap.Int("stored", count),
	)
	return count, nil
}

// forEach runs fn for every id with at most p.concurrency goroutines in
// flight and returns only after all of them settle.
func (p *Pipeline) forEach(ctx context.Context, ids []string, fn func(ctx context.Context, id string)) {
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(ctx, id)
		}(id)
	}
	wg.Wait()
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.ObserveStageDuration(stage, time.Since(start))
	}
}

// splitCategories interprets the cached stage-one payload: a list fans out
// per element, a single category object yields one call.
func splitCategories(raw json.RawMessage) []json.RawMessage {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return []json.RawMessage{raw}
}

// categoryID pulls the category identifier, tolerating numeric and string ids.
func categoryID(raw json.RawMessage) string {
	var numeric struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &numeric); err == nil && numeric.ID.String() != "" {
		return numeric.ID.String()
	}
	var textual struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &textual); err == nil {
		return textual.ID
	}
	return ""
}

// extractProducts flattens one category response into its product entries.
// The partner wraps them in a products field; a bare array is accepted
// as-is, and anything else is kept whole as a single entry.
func extractProducts(payload json.RawMessage) []json.RawMessage {
	var wrapped struct {
		Products []json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Products != nil {
		return wrapped.Products
	}
	var list []json.RawMessage
	if err := json.Unmarshal(payload, &list); err == nil {
		return list
	}
	return []json.RawMessage{payload}
}

// productIdentifier selects the detail-fetch key for a product summary.
func productIdentifier(raw json.RawMessage, detailKey string) string {
	var prod struct {
		SKU  string `json:"sku"`
		Slug string `json:"slug"`
		URL  string `json:"url"`
	}
	if err := json.Unmarshal(raw, &prod); err != nil {
		return ""
	}
	if detailKey == "slug" {
		if prod.Slug != "" {
			return prod.Slug
		}
		return prod.URL
	}
	return prod.SKU
}
