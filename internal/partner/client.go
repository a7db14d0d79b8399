package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal/metrics"
	"catalogsync/internal/signing"
	"catalogsync/internal/store"
)

// Clock abstracts time so the dateAtClient header is testable.
type Clock interface {
	Now() time.Time
}

// dateAtClient carries millisecond precision, matching the partner's
// ISO-8601 expectation.
const dateAtClientLayout = "2006-01-02T15:04:05.000Z07:00"

// Client issues signed calls against the partner API. It resolves the
// tenant's cached bearer token, signs the canonical request with the tenant
// secret, and classifies the response. It never mutates the store.
type Client struct {
	http   *http.Client
	store  store.Store
	clock  Clock
	logger *zap.Logger
}

// NewClient constructs a Client. A nil httpClient falls back to a 15s
// timeout default; a nil logger is replaced with a no-op.
func NewClient(httpClient *http.Client, st store.Store, clk Clock, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Client{http: httpClient, store: st, clock: clk, logger: logger}
}

// Call performs one signed request for the tenant. body must be valid JSON
// or nil. The returned payload is the raw partner response; errors carry a
// Kind the caller can branch on.
func (c *Client) Call(
	ctx context.Context,
	tenant Tenant,
	method string,
	url string,
	body json.RawMessage,
) (json.RawMessage, error) {
	token, err := cachedToken(ctx, c.store, tenant.Name)
	if err != nil {
		metrics.ObservePartnerRequest(tenant.Name, KindNotAuthenticated.String())
		return nil, err
	}

	canonical, err := signing.Canonicalize(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("canonicalize request: %w", err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("dateAtClient", c.clock.Now().UTC().Format(dateAtClientLayout))
	req.Header.Set("signature", signing.SignHex(canonical, tenant.ClientSecret))
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObservePartnerRequest(tenant.Name, KindTransport.String())
		c.logger.Warn("partner call failed",
			zap.String("tenant", tenant.Name),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, transportError("partner unreachable", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObservePartnerRequest(tenant.Name, KindTransport.String())
		return nil, transportError("read partner response", err)
	}

	result, err := classify(resp.StatusCode, payload)
	if err != nil {
		metrics.ObservePartnerRequest(tenant.Name, KindOf(err).String())
		c.logger.Warn("partner rejected call",
			zap.String("tenant", tenant.Name),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return nil, err
	}
	metrics.ObservePartnerRequest(tenant.Name, "success")
	return result, nil
}

// classify maps a partner HTTP response to success or a tagged error. A body
// carrying the in-band message field is a partner-level failure even on
// HTTP 200; a non-2xx status without one is a transport failure.
func classify(status int, payload []byte) (json.RawMessage, error) {
	if msg := inBandMessage(payload); msg != "" {
		return nil, partnerError(msg)
	}
	if status < 200 || status > 299 {
		return nil, transportError(fmt.Sprintf("partner returned status %d", status), nil)
	}
	if len(payload) == 0 {
		return json.RawMessage(`null`), nil
	}
	if !json.Valid(payload) {
		// Rare plain-text success bodies are stored as a JSON string.
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return nil, fmt.Errorf("encode response body: %w", err)
		}
		return quoted, nil
	}
	return payload, nil
}

// inBandMessage extracts the partner's error field from a JSON object body.
func inBandMessage(payload []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}

// cachedToken reads the tenant's persisted bearer token. Absent or
// malformed entries surface as ErrNotLoggedIn.
func cachedToken(ctx context.Context, st store.Store, tenant string) (string, error) {
	raw, err := st.Get(ctx, store.TokenKey(tenant))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrNotLoggedIn
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil || token == "" {
		return "", ErrNotLoggedIn
	}
	return token, nil
}
