package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"stash/internal/platform/metrics"
	"stash/internal/platform/middleware"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/httputil"
)

// Registrar mounts a feature's endpoints.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries what the router needs beyond the feature handlers.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.HTTP
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

// NewRouter wires the middleware chain, the metrics endpoint and every
// registrar. Transport concerns stay here; handlers only translate requests.
func NewRouter(cfg RouterConfig, registrars ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics))
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequireJSON)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.ErrorResponse{
			Error:            "method_not_allowed",
			ErrorDescription: "method not allowed on this resource",
		})
	})

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}
	for _, reg := range registrars {
		reg.Register(r)
	}
	return r
}
