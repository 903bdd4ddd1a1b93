package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/telemetry"
)

// Server exposes the evaluation API over HTTP. All read paths serve
// from the snapshot cache; no handler touches the backing store.
type Server struct {
	cache          *snapshot.Cache
	log            zerolog.Logger
	rateLimitPerIP int
}

// NewServer creates a server backed by the given snapshot cache.
// rateLimitPerIP is requests per minute per client IP; zero disables
// rate limiting.
func NewServer(cache *snapshot.Cache, log zerolog.Logger, rateLimitPerIP int) *Server {
	return &Server{cache: cache, log: log, rateLimitPerIP: rateLimitPerIP}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))
	r.Use(s.requestLogger)
	r.Use(telemetry.Middleware)

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api/v1", func(r chi.Router) {
		if s.rateLimitPerIP > 0 {
			r.Use(httprate.Limit(s.rateLimitPerIP, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
					errResp := NewErrorResponse(http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
					writeErrorResponse(w, req, http.StatusTooManyRequests, errResp)
				}),
			))
		}

		r.Post("/evaluation", s.handleEvaluation)
		r.Post("/evaluation/batch", s.handleEvaluationBatch)
		r.Get("/export/snapshot", s.handleExportSnapshot)
		r.Get("/flags", s.handleListFlags)
	})

	return r
}

// readyz reports 503 until the cache has completed at least one load,
// so load balancers don't route traffic to an instance still serving
// the empty snapshot.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.cache.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
