package partner

import (
	"context"
	"encoding/json"
	"net/http"
)

// Order operations ride the same signed-call path as the catalog crawl.
// The POST variants exercise body canonicalization: the partner recomputes
// the signature over the key-sorted body, so the payload we sign is the
// payload we send.

// PlaceOrder submits an order payload.
func (c *Client) PlaceOrder(ctx context.Context, tenant Tenant, order json.RawMessage) (json.RawMessage, error) {
	return c.Call(ctx, tenant, http.MethodPost, tenant.ordersURL(), order)
}

// ReverseOrder cancels a previously placed order.
func (c *Client) ReverseOrder(ctx context.Context, tenant Tenant, order json.RawMessage) (json.RawMessage, error) {
	return c.Call(ctx, tenant, http.MethodPost, tenant.reverseOrderURL(), order)
}

// Order fetches one order by id.
func (c *Client) Order(ctx context.Context, tenant Tenant, id string) (json.RawMessage, error) {
	return c.Call(ctx, tenant, http.MethodGet, tenant.orderURL(id), nil)
}

// OrderStatus fetches the processing status for a reference number.
func (c *Client) OrderStatus(ctx context.Context, tenant Tenant, refno string) (json.RawMessage, error) {
	return c.Call(ctx, tenant, http.MethodGet, tenant.orderStatusURL(refno), nil)
}

// OrderCards lists the cards attached to a fulfilled order.
func (c *Client) OrderCards(ctx context.Context, tenant Tenant, id string) (json.RawMessage, error) {
	return c.Call(ctx, tenant, http.MethodGet, tenant.orderCardsURL(id), nil)
}
