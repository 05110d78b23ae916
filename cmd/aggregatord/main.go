// aggregatord is a thin HTTP demonstrator for the academic-search
// aggregation engine. It wires the coordinator/provider packages
// behind two endpoints — GET /search and GET /healthz — and otherwise
// stays out of scheduling logic, which lives entirely in
// internal/multisearch.
//
// TODO: replace the manual signal-handling shutdown below with
// golang.org/x/sync/errgroup once a second long-running goroutine
// (e.g. a scheduled cache sweep) justifies the coordination.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/scholarflux/aggregator/internal/cachemgr"
	"github.com/scholarflux/aggregator/internal/config"
	"github.com/scholarflux/aggregator/internal/provider"
	"github.com/scholarflux/aggregator/internal/ratelimit"
	"github.com/scholarflux/aggregator/internal/storage"
	"github.com/scholarflux/aggregator/internal/workflow"
)

// validateEnv checks that critical environment variables have valid
// values before anything else starts, so a misconfiguration fails
// fast with a readable message instead of surfacing later as a
// confusing connection error.
func validateEnv() []string {
	var errs []string

	if addr := os.Getenv("AGGREGATOR_LISTEN_ADDR"); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Sprintf("AGGREGATOR_LISTEN_ADDR=%q: must be host:port (%v)", addr, err))
		}
	}
	if port := os.Getenv("PORT"); port != "" {
		if _, err := net.LookupPort("tcp", port); err != nil {
			errs = append(errs, fmt.Sprintf("PORT=%q: must be a valid port number", port))
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		if _, err := url.Parse(dbURL); err != nil {
			errs = append(errs, fmt.Sprintf("DATABASE_URL: invalid URL (%v)", err))
		}
	}
	return errs
}

func listenAddr() string {
	if addr := os.Getenv("AGGREGATOR_LISTEN_ADDR"); addr != "" {
		return addr
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

// buildStorageBackend picks a Backend from the environment: a
// Postgres DSN selects SQLBackend, an S3-compatible endpoint selects
// ObjectBackend, and otherwise the process falls back to an
// in-memory backend suitable for a single demo instance.
func buildStorageBackend(ctx context.Context) (storage.Backend, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return storage.NewSQLBackend(ctx, storage.SQLConfig{DatabaseURL: dsn})
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		return storage.NewObjectBackend(ctx, storage.ObjectConfig{
			Endpoint:  endpoint,
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    os.Getenv("S3_BUCKET"),
			UseSSL:    os.Getenv("S3_USE_SSL") == "true",
		})
	}
	return storage.NewMemoryBackend(), nil
}

// server holds the dependencies every handler needs. A fresh
// SearchCoordinator is built per request rather than shared, since
// SearchAPI's query is mutable state scoped to one in-flight request;
// sharing one across concurrent requests for the same provider would
// let one request's query clobber another's mid-flight.
type server struct {
	registry     *provider.Registry
	cache        *cachemgr.Manager
	limiters     *ratelimit.Registry
	providerKeys map[string]string
	defaultPage  int
	logger       *slog.Logger
}

func newServer(cfg *config.Config, cache *cachemgr.Manager) *server {
	return &server{
		registry:     provider.Defaults(),
		cache:        cache,
		limiters:     ratelimit.NewRegistry(),
		providerKeys: cfg.ProviderKeys,
		defaultPage:  1,
		logger:       slog.Default(),
	}
}

func (s *server) coordinatorFor(name, query string) (*provider.SearchCoordinator, bool) {
	cfg, ok := s.registry.Get(name)
	if !ok {
		return nil, false
	}
	api := provider.NewSearchAPI(cfg, query, s.providerKeys[name], nil).WithLimiters(s.limiters)
	return provider.NewSearchCoordinator(api, provider.NewResponseCoordinator(s.cache)), true
}

// handleSearch serves GET /search?provider=&q=&page=, running either a
// registered single-endpoint provider or (for "pubmed") the two-step
// ESearch/ESummary Workflow, and returns a JSON object describing the
// page, with its normalized records under "records".
func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	providerName := strings.ToLower(r.URL.Query().Get("provider"))
	query := r.URL.Query().Get("q")
	page := s.defaultPage
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	if providerName == "" || query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "provider and q query parameters are required"})
		return
	}

	if providerName == "pubmed" {
		s.handlePubMedSearch(w, r, query, page)
		return
	}

	coord, ok := s.coordinatorFor(providerName, query)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("unknown provider %q", providerName)})
		return
	}

	result := coord.Search(r.Context(), page)
	writeSearchResult(w, result)
}

func (s *server) handlePubMedSearch(w http.ResponseWriter, r *http.Request, query string, page int) {
	wf := workflow.NewPubMedWorkflow(query, s.providerKeys["pubmed"], 20, http.DefaultClient, s.limiters, s.cache)
	result, err := wf.Run(r.Context(), nil, page)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeSearchResult(w, provider.NewSearchResult(page, query, "pubmed", result))
}

func writeSearchResult(w http.ResponseWriter, result provider.SearchResult) {
	status := http.StatusOK
	if result.Result.Kind == provider.KindError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"id":         result.ID,
		"page":       result.Page,
		"query":      result.Query,
		"provider":   result.ProviderName,
		"kind":       result.Result.Kind,
		"from_cache": result.Result.FromCache,
		"records":    result.Result.NormalizedRecords,
		"error":      errorMessage(result.Result),
	})
}

func errorMessage(resp provider.APIResponse) string {
	if resp.Kind != provider.KindError {
		return ""
	}
	return resp.Message
}

// handleHealthz is a liveness probe — confirms the process can
// respond and reports the providers it knows about.
func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": append(s.registry.Names(), "pubmed"),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed writing JSON response", slog.String("error", err.Error()))
	}
}

// securityHeaders adds standard HTTP security headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// requestID tags every response with an X-Request-ID header, echoing
// one supplied by the caller or minting a fresh UUID otherwise.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func newRouter(s *server, corsOrigins []string) chi.Router {
	r := chi.NewRouter()

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/search", s.handleSearch)

	return r
}

func main() {
	if errs := validateEnv(); len(errs) > 0 {
		for _, e := range errs {
			slog.Error("invalid environment configuration", slog.String("detail", e))
		}
		os.Exit(1)
	}

	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	slog.SetLogLoggerLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := buildStorageBackend(ctx)
	if err != nil {
		slog.Error("failed to initialize storage backend", slog.String("error", err.Error()))
		os.Exit(1)
	}
	cache := cachemgr.New(backend)

	srv := newServer(cfg, cache)

	var corsOrigins []string
	if v := os.Getenv("AGGREGATOR_CORS_ORIGINS"); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	httpServer := &http.Server{
		Addr:              listenAddr(),
		Handler:           newRouter(srv, corsOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("aggregatord listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}
