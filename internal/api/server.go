// Package api exposes the HTTP interface for the catalog sync service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"catalogsync/internal/config"
	"catalogsync/internal/export"
	"catalogsync/internal/metrics"
	"catalogsync/internal/partner"
	"catalogsync/internal/store"
)

// Authenticator runs the two-step token exchange for a tenant. Satisfied
// by *partner.TokenManager.
type Authenticator interface {
	Acquire(ctx context.Context, tenant partner.Tenant) error
}

// Syncer runs the crawl stages. Satisfied by *pipeline.Pipeline.
type Syncer interface {
	SyncCategories(ctx context.Context, tenant partner.Tenant) (json.RawMessage, error)
	SyncProducts(ctx context.Context, tenant partner.Tenant) (int, error)
	SyncProductDetails(ctx context.Context, tenant partner.Tenant) (int, error)
}

// OrderClient issues signed order calls. Satisfied by *partner.Client.
type OrderClient interface {
	PlaceOrder(ctx context.Context, tenant partner.Tenant, order json.RawMessage) (json.RawMessage, error)
	ReverseOrder(ctx context.Context, tenant partner.Tenant, order json.RawMessage) (json.RawMessage, error)
	Order(ctx context.Context, tenant partner.Tenant, id string) (json.RawMessage, error)
	OrderStatus(ctx context.Context, tenant partner.Tenant, refno string) (json.RawMessage, error)
	OrderCards(ctx context.Context, tenant partner.Tenant, id string) (json.RawMessage, error)
}

// ProductExporter serves the analytics feed. Satisfied by *export.Exporter.
type ProductExporter interface {
	Products(ctx context.Context, tenant string) ([]export.Product, error)
}

// Server wires HTTP handlers to the pipeline, token manager and store.
type Server struct {
	router   chi.Router
	tokens   Authenticator
	syncer   Syncer
	orders   OrderClient
	exporter ProductExporter
	store    store.Store
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	tokens Authenticator,
	syncer Syncer,
	orders OrderClient,
	exporter ProductExporter,
	st store.Store,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		tokens:   tokens,
		syncer:   syncer,
		orders:   orders,
		exporter: exporter,
		store:    st,
		cfg:      cfg,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/tenants/{tenant}", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Use(s.tenantMiddleware)

		r.Post("/auth", s.postAuth)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/categories", s.postSyncCategories)
			r.Post("/products", s.postSyncProducts)
			r.Post("/details", s.postSyncDetails)
		})
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", s.getCachedCategories)
			r.Get("/products", s.getCachedProducts)
			r.Get("/products/{id}", s.getCachedProduct)
		})
		r.Get("/export/products", s.getExportProducts)
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.postOrder)
			r.Post("/reverse", s.postReverseOrder)
			r.Get("/{id}", s.getOrder)
			r.Get("/{id}/status", s.getOrderStatus)
			r.Get("/{id}/cards", s.getOrderCards)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only downstream the service cannot run without.
	probe := store.CategoriesKey("readyz")
	if _, err := s.store.Get(r.Context(), probe); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// tenantMiddleware resolves the {tenant} path parameter against configured
// tenants. Unknown tenants 404 before any handler runs.
func (s *Server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "tenant")
		tc, ok := s.cfg.Tenants[name]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		tenant := partner.TenantFromConfig(name, tc)
		ctx := context.WithValue(r.Context(), tenantKey{}, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type tenantKey struct{}

func tenantFrom(r *http.Request) partner.Tenant {
	tenant, _ := r.Context().Value(tenantKey{}).(partner.Tenant)
	return tenant
}

func (s *Server) postAuth(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	if err := s.tokens.Acquire(r.Context(), tenant); err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) postSyncCategories(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	payload, err := s.syncer.SyncCategories(r.Context(), tenant)
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (s *Server) postSyncProducts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	added, err := s.syncer.SyncProducts(r.Context(), tenant)
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) postSyncDetails(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	added, err := s.syncer.SyncProductDetails(r.Context(), tenant)
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

func (s *Server) getCachedCategories(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	s.serveCached(w, r, store.CategoriesKey(tenant.Name))
}

func (s *Server) getCachedProducts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	s.serveCached(w, r, store.ProductListKey(tenant.Name))
}

func (s *Server) getCachedProduct(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	s.serveCached(w, r, store.ProductKey(tenant.Name, chi.URLParam(r, "id")))
}

func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string) {
	payload, err := s.store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("cache read failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (s *Server) getExportProducts(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	rows, err := s.exporter.Products(r.Context(), tenant.Name)
	if err != nil {
		s.logger.Error("export failed", zap.String("tenant", tenant.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": rows})
}

func (s *Server) postOrder(w http.ResponseWriter, r *http.Request) {
	s.forwardOrder(w, r, s.orders.PlaceOrder)
}

func (s *Server) postReverseOrder(w http.ResponseWriter, r *http.Request) {
	s.forwardOrder(w, r, s.orders.ReverseOrder)
}

func (s *Server) forwardOrder(
	w http.ResponseWriter,
	r *http.Request,
	call func(context.Context, partner.Tenant, json.RawMessage) (json.RawMessage, error),
) {
	tenant := tenantFrom(r)
	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	payload, err := call(r.Context(), tenant, body)
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	payload, err := s.orders.Order(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (s *Server) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	payload, err := s.orders.OrderStatus(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

func (s *Server) getOrderCards(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r)
	payload, err := s.orders.OrderCards(r.Context(), tenant, chi.URLParam(r, "id"))
	if err != nil {
		s.writePartnerError(w, tenant.Name, err)
		return
	}
	writeRaw(w, http.StatusOK, payload)
}

// writePartnerError maps the partner error taxonomy onto the inbound
// contract. Partner messages are safe to surface; transport causes are not.
func (s *Server) writePartnerError(w http.ResponseWriter, tenant string, err error) {
	kind := partner.KindOf(err)
	s.logger.Warn("partner call failed",
		zap.String("tenant", tenant),
		zap.String("kind", kind.String()),
		zap.Error(err),
	)
	switch kind {
	case partner.KindNotAuthenticated:
		writeError(w, http.StatusUnauthorized, "not logged in")
	case partner.KindAuthFailure, partner.KindPartner:
		var pe *partner.Error
		if errors.As(err, &pe) {
			writeError(w, http.StatusBadGateway, pe.Message)
			return
		}
		writeError(w, http.StatusBadGateway, "partner error")
	case partner.KindTransport:
		writeError(w, http.StatusBadGateway, "partner unreachable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

// writeRaw forwards an already-encoded JSON payload verbatim.
func writeRaw(w http.ResponseWriter, status int, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if _, err := w.Write(payload); err != nil {
		zap.L().Error("write payload failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
