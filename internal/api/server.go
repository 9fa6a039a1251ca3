// Package api exposes the ledger, verification runs and reports over HTTP.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/portverify/internal/model"
	"github.com/sells-group/portverify/internal/store"
	"github.com/sells-group/portverify/internal/verify"
)

// Runner executes a verification run over the ledger.
type Runner interface {
	Run(ctx context.Context, ledger *model.Ledger) (model.Progress, error)
	OnProgress(fn func(model.Progress))
}

// Summarizer produces a prose summary of completed records.
type Summarizer interface {
	Summarize(ctx context.Context, ledger *model.Ledger) (string, error)
}

// Deps are the collaborators the API serves.
type Deps struct {
	Ledger     *model.Ledger
	Store      store.Store
	Runner     Runner
	Summarizer Summarizer
	Gatherer   prometheus.Gatherer

	AllowedOrigins []string
}

// Server owns the HTTP routes and serialises verification runs.
type Server struct {
	deps    Deps
	baseCtx context.Context

	mu       sync.Mutex
	running  bool
	progress model.Progress
	lastErr  error
	runs     sync.WaitGroup
}

// NewServer creates a Server. Runs started over HTTP derive from ctx rather
// than from the request, so they outlive the POST that started them.
func NewServer(ctx context.Context, deps Deps) *Server {
	s := &Server{deps: deps, baseCtx: ctx}
	deps.Runner.OnProgress(s.setProgress)
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/records", s.handleListRecords)
	r.Post("/records", s.handleAddRecords)
	r.Delete("/records", s.handleClearRecords)
	r.Post("/runs", s.handleStartRun)
	r.Get("/runs/progress", s.handleProgress)
	r.Post("/summary", s.handleSummary)
	r.Get("/export.csv", s.handleExportCSV)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// Wait blocks until every run started over HTTP has finished.
func (s *Server) Wait() {
	s.runs.Wait()
}

// startRun begins an asynchronous run. It reports false when one is already
// active.
func (s *Server) startRun() (model.Progress, bool) {
	s.mu.Lock()
	if s.running {
		p := s.progress
		s.mu.Unlock()
		return p, false
	}
	s.running = true
	s.lastErr = nil
	s.progress = model.Progress{Total: len(s.deps.Ledger.Eligible())}
	p := s.progress
	s.runs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.runs.Done()
		start := time.Now()
		final, err := s.deps.Runner.Run(s.baseCtx, s.deps.Ledger)
		if err != nil {
			zap.L().Error("api: run failed", zap.Error(err))
		}

		s.mu.Lock()
		s.running = false
		s.progress = final
		s.lastErr = err
		s.mu.Unlock()

		zap.L().Info("api: run finished",
			zap.Int("processed", final.Processed),
			zap.Int("total", final.Total),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
	return p, true
}

// SweepStale returns InFlight records older than olderThan to Pending and
// persists them. It does nothing while a run is active.
func (s *Server) SweepStale(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return 0, nil
	}

	demoted := verify.DemoteStale(s.deps.Ledger, olderThan, now)
	if len(demoted) == 0 {
		return 0, nil
	}
	if err := s.deps.Store.Save(ctx, demoted...); err != nil {
		return 0, eris.Wrap(err, "api: persist stale demotion")
	}
	return len(demoted), nil
}

// clearLedger deletes every record. It reports false without touching the
// ledger when a run is active, and holds mu throughout so no run can start
// while the clear is in progress.
func (s *Server) clearLedger(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, nil
	}

	if err := s.deps.Store.Clear(ctx); err != nil {
		return true, eris.Wrap(err, "api: clear records")
	}
	s.deps.Ledger.Clear()
	return true, nil
}

func (s *Server) setProgress(p model.Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

type runState struct {
	Running   bool   `json:"running"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) state() runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := runState{Running: s.running, Processed: s.progress.Processed, Total: s.progress.Total}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

// Running reports whether a run started over HTTP is active.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

var _ Runner = (*verify.Orchestrator)(nil)
var _ Summarizer = (*verify.Summarizer)(nil)
