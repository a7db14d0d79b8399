package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/store"
	"catalogsync/internal/store/memory"
)

func TestTokenManagerAcquirePersistsToken(t *testing.T) {
	t.Parallel()

	var verifyBody, tokenBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/verify":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&verifyBody))
			w.Write([]byte(`{"authorizationCode":"code-1"}`)) //nolint:errcheck
		case "/oauth2/token":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&tokenBody))
			w.Write([]byte(`{"token":"tok-99"}`)) //nolint:errcheck
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	st := memory.New()
	mgr := NewTokenManager(srv.Client(), st, nil)
	tenant := testTenant(srv.URL)

	require.NoError(t, mgr.Acquire(context.Background(), tenant))

	require.Equal(t, map[string]string{
		"clientId": "client-1",
		"username": "svc",
		"password": "pwd",
	}, verifyBody)
	require.Equal(t, map[string]string{
		"clientId":          "client-1",
		"clientSecret":      "secret-1",
		"authorizationCode": "code-1",
	}, tokenBody)

	token, err := mgr.Token(context.Background(), tenant)
	require.NoError(t, err)
	require.Equal(t, "tok-99", token)
}

func TestTokenManagerAcquireVerifyRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth2/verify", r.URL.Path)
		w.Write([]byte(`{"message":"invalid credentials"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	st := memory.New()
	mgr := NewTokenManager(srv.Client(), st, nil)

	err := mgr.Acquire(context.Background(), testTenant(srv.URL))
	require.Equal(t, KindAuthFailure, KindOf(err))
	require.Contains(t, err.Error(), "invalid credentials")

	// The cache must stay untouched on failure.
	_, err = st.Get(context.Background(), store.TokenKey("acme"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenManagerAcquireExchangeWithoutToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/verify":
			w.Write([]byte(`{"authorizationCode":"code-1"}`)) //nolint:errcheck
		case "/oauth2/token":
			// Error-shaped token responses must not be cached: the strict
			// check treats an absent token string as an auth failure.
			w.Write([]byte(`{}`)) //nolint:errcheck
		}
	}))
	defer srv.Close()

	st := memory.New()
	mgr := NewTokenManager(srv.Client(), st, nil)

	err := mgr.Acquire(context.Background(), testTenant(srv.URL))
	require.Equal(t, KindAuthFailure, KindOf(err))

	_, err = st.Get(context.Background(), store.TokenKey("acme"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTokenManagerAcquireTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	mgr := NewTokenManager(nil, memory.New(), nil)

	err := mgr.Acquire(context.Background(), testTenant(srv.URL))
	require.Equal(t, KindTransport, KindOf(err))
}

func TestTokenManagerTokenAbsent(t *testing.T) {
	t.Parallel()

	mgr := NewTokenManager(nil, memory.New(), nil)
	_, err := mgr.Token(context.Background(), testTenant("https://partner.example.com"))
	require.Equal(t, KindNotAuthenticated, KindOf(err))
}

func TestTokenManagerAcquireReplacesPreviousToken(t *testing.T) {
	t.Parallel()

	token := "tok-a"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth2/verify":
			w.Write([]byte(`{"authorizationCode":"code"}`)) //nolint:errcheck
		case "/oauth2/token":
			json.NewEncoder(w).Encode(map[string]string{"token": token}) //nolint:errcheck
		}
	}))
	defer srv.Close()

	st := memory.New()
	mgr := NewTokenManager(srv.Client(), st, nil)
	tenant := testTenant(srv.URL)
	ctx := context.Background()

	require.NoError(t, mgr.Acquire(ctx, tenant))
	token = "tok-b"
	require.NoError(t, mgr.Acquire(ctx, tenant))

	got, err := mgr.Token(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, "tok-b", got)
}
