package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalogsync/internal/signing"
	"catalogsync/internal/store"
	"catalogsync/internal/store/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func testTenant(baseURL string) Tenant {
	return Tenant{
		Name:         "acme",
		BaseURL:      baseURL,
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Username:     "svc",
		Password:     "pwd",
		DetailKey:    "sku",
	}
}

func storeToken(t *testing.T, st store.Store, tenant, token string) {
	t.Helper()
	val, err := json.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, st.Set(context.Background(), store.TokenKey(tenant), val))
}

func TestClientCallAttachesSignedHeaders(t *testing.T) {
	t.Parallel()

	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	st := memory.New()
	storeToken(t, st, "acme", "tok-1")
	clk := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	client := NewClient(srv.Client(), st, clk, nil)
	tenant := testTenant(srv.URL)

	url := srv.URL + "/rest/v3/catalog/categories/"
	payload, err := client.Call(context.Background(), tenant, "get", url, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(payload))

	canonical, err := signing.Canonicalize("get", url, nil)
	require.NoError(t, err)
	require.Equal(t, signing.SignHex(canonical, tenant.ClientSecret), gotHeaders.Get("signature"))
	require.Equal(t, "Bearer tok-1", gotHeaders.Get("Authorization"))
	require.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	require.Equal(t, "2024-03-01T12:00:00.000Z", gotHeaders.Get("dateAtClient"))
}

func TestClientCallFailsFastWithoutToken(t *testing.T) {
	t.Parallel()

	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(srv.Client(), memory.New(), &fakeClock{now: time.Unix(0, 0)}, nil)

	_, err := client.Call(context.Background(), testTenant(srv.URL), "get", srv.URL+"/x", nil)
	require.Equal(t, KindNotAuthenticated, KindOf(err))
	require.Zero(t, atomic.LoadInt64(&calls))
}

func TestClientCallClassifiesInBandMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Partner reports business errors in-band on HTTP 200.
		w.Write([]byte(`{"message":"category not found"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	st := memory.New()
	storeToken(t, st, "acme", "tok-1")
	client := NewClient(srv.Client(), st, &fakeClock{now: time.Unix(0, 0)}, nil)

	_, err := client.Call(context.Background(), testTenant(srv.URL), "get", srv.URL+"/x", nil)
	require.Equal(t, KindPartner, KindOf(err))
	require.Contains(t, err.Error(), "category not found")
}

func TestClientCallClassifiesTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	st := memory.New()
	storeToken(t, st, "acme", "tok-1")
	client := NewClient(srv.Client(), st, &fakeClock{now: time.Unix(0, 0)}, nil)

	_, err := client.Call(context.Background(), testTenant(srv.URL), "get", srv.URL+"/x", nil)
	require.Equal(t, KindTransport, KindOf(err))
}

func TestClientCallNetworkErrorIsTransport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	st := memory.New()
	storeToken(t, st, "acme", "tok-1")
	client := NewClient(&http.Client{Timeout: time.Second}, st, &fakeClock{now: time.Unix(0, 0)}, nil)

	_, err := client.Call(context.Background(), testTenant(srv.URL), "get", srv.URL+"/x", nil)
	require.Equal(t, KindTransport, KindOf(err))
}

func TestClassifyTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		payload string
		want    Kind
	}{
		{name: "success object", status: 200, payload: `{"id":1}`, want: KindUnknown},
		{name: "success array", status: 200, payload: `[1,2]`, want: KindUnknown},
		{name: "message on 200", status: 200, payload: `{"message":"bad"}`, want: KindPartner},
		{name: "message on 400", status: 400, payload: `{"message":"bad"}`, want: KindPartner},
		{name: "plain 500", status: 500, payload: ``, want: KindTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := classify(tc.status, []byte(tc.payload))
			if tc.want == KindUnknown {
				require.NoError(t, err)
			} else {
				require.Equal(t, tc.want, KindOf(err))
			}
		})
	}
}

func TestCachedTokenRejectsMalformedEntry(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, store.TokenKey("acme"), json.RawMessage(`{"message":"denied"}`)))

	_, err := cachedToken(ctx, st, "acme")
	require.Equal(t, KindNotAuthenticated, KindOf(err))
}
