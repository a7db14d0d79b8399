// Package store declares the key-value persistence contract shared by the
// token manager, the crawl pipeline, and the read-side handlers.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound signals that the requested key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Store is an opaque get/set cache keyed by string. Values are raw JSON;
// backends persist them across process restarts but offer no transactions
// and no TTL. Staleness is controlled entirely by re-running the pipeline.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
}
