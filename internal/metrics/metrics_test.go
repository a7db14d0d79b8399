package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotPanics(t, func() {
		ObservePartnerRequest("acme", "success")
		ObserveSyncItem("acme", "products", "failed")
		ObserveStageDuration("categories", 120*time.Millisecond)
		ObserveHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObservePartnerRequest("acme", "success")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "catalogsync_partner_requests_total")
}
