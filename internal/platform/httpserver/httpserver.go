package httpserver

import (
	"net/http"
	"time"

	"stash/internal/platform/config"
)

// New builds an HTTP server for cfg. Write timeouts leave headroom over the
// per-request timeout so handlers can still write their error response.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
