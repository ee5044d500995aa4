// Package web exposes the persistence engine over HTTP: one uniform
// resource surface per registered entity plus health and metrics
// endpoints. Stateless; authentication is a JWT or an API token on
// every request.
package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/planora/planora/adapters/auth"
	"github.com/planora/planora/adapters/metrics"
	"github.com/planora/planora/app"
	"github.com/planora/planora/ports"
)

// maxBodyBytes caps request bodies before JSON decoding.
const maxBodyBytes = 1 << 20

// Handler provides the entity API endpoints.
type Handler struct {
	dispatcher *app.Dispatcher
	tokens     *auth.TokenService
	principals ports.PrincipalStore
	hasher     ports.Hasher
	logger     zerolog.Logger
	metrics    *metrics.Collector // optional
}

// Deps contains dependencies for the web handler.
type Deps struct {
	Dispatcher *app.Dispatcher
	Tokens     *auth.TokenService
	Principals ports.PrincipalStore
	Hasher     ports.Hasher
	Logger     zerolog.Logger
	Metrics    *metrics.Collector
}

// NewHandler creates the API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		dispatcher: deps.Dispatcher,
		tokens:     deps.Tokens,
		principals: deps.Principals,
		hasher:     deps.Hasher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Operational endpoints, no auth required.
	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/{entity}", h.List)
		r.Post("/{entity}", h.Create)
		r.Delete("/{entity}", h.DeleteByKey)

		r.Get("/{entity}/{id}", h.Read)
		r.Put("/{entity}/{id}", h.Update)
		r.Delete("/{entity}/{id}", h.Delete)
	})

	return r
}

// AuthMiddleware authenticates each request from either a JWT bearer
// token or an API token of the form "principalID:secret". Stateless for
// JWT; API tokens cost one principal lookup and a bcrypt compare.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			claims, err := h.tokens.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				h.countAuthFailure("jwt")
				writeError(w, http.StatusUnauthorized, "invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identityFromClaims(claims))))
			return
		}

		if token := r.Header.Get("X-API-Token"); token != "" {
			id, secret, ok := strings.Cut(token, ":")
			if !ok {
				h.countAuthFailure("token")
				writeError(w, http.StatusUnauthorized, "malformed api token", nil)
				return
			}
			p, err := h.principals.Get(r.Context(), id)
			if err != nil || !h.hasher.Compare(p.TokenHash, secret) {
				h.countAuthFailure("token")
				writeError(w, http.StatusUnauthorized, "invalid api token", nil)
				return
			}
			identity := Identity{PrincipalID: p.ID, Name: p.Name, Role: p.Role}
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
			return
		}

		h.countAuthFailure("missing")
		writeError(w, http.StatusUnauthorized, "authentication required", nil)
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request with timing, and feeds the
// request metrics when a collector is wired.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")

		if h.metrics != nil {
			entity := chi.URLParam(r, "entity")
			if entity == "" {
				return
			}
			h.metrics.RequestsTotal.WithLabelValues(entity, r.Method, strconv.Itoa(ww.Status())).Inc()
			h.metrics.RequestDuration.WithLabelValues(entity, r.Method).Observe(elapsed.Seconds())
		}
	})
}

func (h *Handler) countAuthFailure(reason string) {
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}
