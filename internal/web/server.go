package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/stockpile/internal/inventory"
	"github.com/hpungsan/stockpile/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures the web server.
type Options struct {
	Version string
	Bind    string
	Port    int
	Policy  ops.PathPolicy
	Logger  zerolog.Logger
}

// NewServer creates and configures the HTTP server for the Stockpile web UI.
// The store must not be used by anything else while the server runs.
func NewServer(store *inventory.Store, opts Options) (*http.Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := &Handlers{
		store:    store,
		policy:   opts.Policy,
		renderer: NewRenderer(templateSub, opts.Version, opts.Logger),
		log:      opts.Logger,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Bind, opts.Port),
		Handler:           h.routes(http.FileServerFS(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// routes builds the mux and wraps it in the middleware chain.
func (h *Handlers) routes(static http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/items", http.StatusFound)
	})
	mux.HandleFunc("GET /items", h.HandleList)
	mux.HandleFunc("POST /items", h.HandleSubmit)
	mux.HandleFunc("GET /items/{id}/edit", h.HandleEdit)
	mux.HandleFunc("POST /items/{id}/delete", h.HandleDelete)
	mux.HandleFunc("DELETE /items/{id}", h.HandleDelete)
	mux.HandleFunc("POST /items/sort", h.HandleSort)
	mux.HandleFunc("POST /items/cancel", h.HandleCancel)
	mux.HandleFunc("GET /report", h.HandleReport)
	mux.HandleFunc("POST /export", h.HandleExport)

	mux.Handle("GET /static/", http.StripPrefix("/static/", static))

	return requestID(recoverer(h.log, requestLogger(h.log, securityHeaders(mux))))
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log zerolog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", "http://"+srv.Addr).Msg("Stockpile UI running")

	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
