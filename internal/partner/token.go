package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal/store"
)

// TokenManager performs the two-step credential exchange and owns the
// cached token lifecycle. Tokens are never refreshed proactively: a token
// stays cached until a new Acquire replaces it.
type TokenManager struct {
	http   *http.Client
	store  store.Store
	logger *zap.Logger
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(httpClient *http.Client, st store.Store, logger *zap.Logger) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenManager{http: httpClient, store: st, logger: logger}
}

// Acquire runs the verify and token exchanges and persists the bearer token
// under the tenant's key. On any failure the store is left untouched.
func (m *TokenManager) Acquire(ctx context.Context, tenant Tenant) error {
	code, err := m.acquireAuthorizationCode(ctx, tenant)
	if err != nil {
		return err
	}
	token, err := m.exchangeForToken(ctx, tenant, code)
	if err != nil {
		return err
	}

	val, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := m.store.Set(ctx, store.TokenKey(tenant.Name), val); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	m.logger.Info("token acquired", zap.String("tenant", tenant.Name))
	return nil
}

// Token returns the cached bearer token or ErrNotLoggedIn.
func (m *TokenManager) Token(ctx context.Context, tenant Tenant) (string, error) {
	return cachedToken(ctx, m.store, tenant.Name)
}

// acquireAuthorizationCode posts the tenant credentials to the verify
// endpoint. The strict check applies: anything but a non-empty code string
// is an auth failure.
func (m *TokenManager) acquireAuthorizationCode(ctx context.Context, tenant Tenant) (string, error) {
	payload, err := m.postJSON(ctx, tenant.verifyURL(), map[string]string{
		"clientId": tenant.ClientID,
		"username": tenant.Username,
		"password": tenant.Password,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		AuthorizationCode string `json:"authorizationCode"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || out.AuthorizationCode == "" {
		return "", authFailure("verify returned no authorization code")
	}
	return out.AuthorizationCode, nil
}

// exchangeForToken trades the authorization code for a bearer token.
func (m *TokenManager) exchangeForToken(ctx context.Context, tenant Tenant, code string) (string, error) {
	payload, err := m.postJSON(ctx, tenant.tokenURL(), map[string]string{
		"clientId":          tenant.ClientID,
		"clientSecret":      tenant.ClientSecret,
		"authorizationCode": code,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || out.Token == "" {
		return "", authFailure("token exchange returned no token")
	}
	return out.Token, nil
}

// postJSON issues an unsigned POST used only by the oauth2 exchange. A body
// carrying the in-band message field maps to an auth failure; network
// problems map to transport errors.
func (m *TokenManager) postJSON(ctx context.Context, url string, body map[string]string) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, transportError("partner unreachable", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("read partner response", err)
	}
	if msg := inBandMessage(payload); msg != "" {
		return nil, authFailure(msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, transportError(fmt.Sprintf("partner returned status %d", resp.StatusCode), nil)
	}
	return payload, nil
}
