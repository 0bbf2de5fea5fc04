package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vincentventalon/docuprocess/pkg/auth"
	"github.com/vincentventalon/docuprocess/pkg/convert"
	"github.com/vincentventalon/docuprocess/pkg/credits"
	"github.com/vincentventalon/docuprocess/pkg/fetch"
	"github.com/vincentventalon/docuprocess/pkg/httputil"
	"github.com/vincentventalon/docuprocess/pkg/middleware"
	"github.com/vincentventalon/docuprocess/pkg/observability"
	"github.com/vincentventalon/docuprocess/pkg/ratelimit"
)

// PDFFetcher downloads a remote PDF after SSRF validation.
type PDFFetcher interface {
	FetchPDF(ctx context.Context, rawURL string) ([]byte, error)
}

// Options carries the tunables the server needs beyond its dependencies.
type Options struct {
	RateLimits middleware.RateLimitOptions
	MaxPDFSize int64
}

// Server is the metered conversion API.
type Server struct {
	router    *mux.Router
	resolver  *auth.Resolver
	limiter   ratelimit.Limiter
	ledger    credits.Ledger
	fetcher   PDFFetcher
	converter convert.Converter
	logger    *observability.Logger
	metrics   *observability.Metrics
	opts      Options
}

// NewServer wires the route table. All dependencies are required except
// metrics, which may be nil.
func NewServer(
	resolver *auth.Resolver,
	limiter ratelimit.Limiter,
	ledger credits.Ledger,
	fetcher PDFFetcher,
	converter convert.Converter,
	logger *observability.Logger,
	metrics *observability.Metrics,
	opts Options,
) *Server {
	if opts.MaxPDFSize <= 0 {
		opts.MaxPDFSize = fetch.DefaultMaxSize
	}

	s := &Server{
		router:    mux.NewRouter(),
		resolver:  resolver,
		limiter:   limiter,
		ledger:    ledger,
		fetcher:   fetcher,
		converter: converter,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the v1 API. Gate order on metered endpoints is
// authenticate, require team, rate limit, then the handler.
func (s *Server) setupRoutes() {
	authenticate := middleware.Authenticate(s.resolver, s.logger)
	requireTeam := middleware.RequireTeam()
	checkLimit := middleware.RateLimit(s.limiter, s.opts.RateLimits, s.logger, s.metrics)
	observeLimit := middleware.RateLimitObserve(s.limiter, s.opts.RateLimits, s.logger)

	v1 := s.router.PathPrefix("/v1").Subrouter()

	// Conversion consumes a credit and counts against the quota.
	v1.Handle("/convert/pdf-to-markdown",
		authenticate(requireTeam(checkLimit(http.HandlerFunc(s.convertPDFToMarkdown))))).Methods("POST")

	// Account endpoints are read-only: they report quota but never consume it.
	v1.Handle("/account",
		authenticate(requireTeam(observeLimit(http.HandlerFunc(s.getAccount))))).Methods("GET")
	v1.Handle("/account/transactions",
		authenticate(requireTeam(observeLimit(http.HandlerFunc(s.listTransactions))))).Methods("GET")

	s.router.HandleFunc("/health", s.health).Methods("GET")
}

// Router exposes the route table for wrapping and serving.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
