package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"stash/internal/platform/metrics"
	"stash/internal/platform/middleware"
	"stash/pkg/testutil"
)

type pingRegistrar struct{}

func (pingRegistrar) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/echo", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newTestRouter() http.Handler {
	reg := metrics.NewRegistry()
	return NewRouter(RouterConfig{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.NewHTTP(reg),
		Gatherer: reg,
	}, pingRegistrar{})
}

func TestRouterMountsRegistrars(t *testing.T) {
	rr := testutil.DoRequest(newTestRouter(), testutil.NewRequest(t, http.MethodGet, "/ping"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.NotEmpty(t, rr.Header().Get(middleware.HeaderRequestID))
}

func TestRouterErrorsUseEnvelope(t *testing.T) {
	router := newTestRouter()

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nope"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/ping"))
	testutil.AssertStatusAndError(t, rr, http.StatusMethodNotAllowed, "method_not_allowed")

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/echo", "hello")
	req.Header.Set("Content-Type", "text/plain")
	testutil.AssertStatusAndError(t, testutil.DoRequest(router, req), http.StatusUnsupportedMediaType, "unsupported_media_type")
}

func TestRouterExposesMetrics(t *testing.T) {
	router := newTestRouter()
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ping"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), `stash_http_requests_total{method="GET",route="/ping",status="204"} 1`)
}
