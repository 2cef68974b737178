// Package api exposes the cleaning pipeline over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sells-group/atp-clean/internal/model"
	"github.com/sells-group/atp-clean/internal/pipeline"
	"github.com/sells-group/atp-clean/internal/store"
)

// HeaderState carries the final pipeline state of a clean request.
const HeaderState = "X-Cleaning-State"

const maxBodyBytes = 256 << 20

// Server serves the clean and run history endpoints.
type Server struct {
	router   *chi.Mux
	pipeline *pipeline.Pipeline
	store    store.Store
	clock    clockwork.Clock
	origins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used for run timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// New creates a Server. st may be store.Nop{}.
func New(p *pipeline.Pipeline, st store.Store, opts ...Option) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		pipeline: p,
		store:    st,
		clock:    clockwork.NewRealClock(),
		origins:  []string{"*"},
	}
	for _, o := range opts {
		o(s)
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{HeaderState},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/clean", s.handleClean)
		r.Get("/runs", s.handleListRuns)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": pipeline.Version})
}

// handleClean cleans the dataset in the request body. A dataset that was
// already cleaned is echoed back unchanged.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	started := s.clock.Now()
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "http"
	}
	log := zap.L().With(zap.String("source", source), zap.String("request_id", middleware.GetReqID(r.Context())))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	ds, err := model.DecodeDataset(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dataset: "+err.Error())
		return
	}

	res, err := s.pipeline.Run(r.Context(), ds)
	s.record(r, source, started, res, err)
	switch {
	case err != nil && pipeline.IsSchemaViolation(err):
		log.Warn("api: dataset rejected", zap.Error(err))
		w.Header().Set(HeaderState, string(pipeline.StateFailed))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Error("api: clean failed", zap.Error(err))
		w.Header().Set(HeaderState, string(pipeline.StateFailed))
		writeError(w, http.StatusInternalServerError, "clean failed")
		return
	}

	out := body
	if res.State != pipeline.StateSkipped {
		if out, err = ds.Encode(); err != nil {
			log.Error("api: encode failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "encode failed")
			return
		}
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set(HeaderState, string(res.State))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Source: q.Get("source"),
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) record(r *http.Request, source string, started time.Time, res *pipeline.Result, runErr error) {
	run := &model.Run{
		Source:     source,
		Status:     model.RunStatusFailed,
		Version:    pipeline.Version,
		StartedAt:  started,
		FinishedAt: s.clock.Now(),
	}
	if res != nil {
		run.Status = res.Status()
		run.FeaturesIn = res.FeaturesIn
		run.FeaturesOut = res.FeaturesOut
		run.RepeatedTags = res.RepeatedTags
		run.Warnings = len(res.Warnings)
	}
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := s.store.RecordRun(r.Context(), run); err != nil {
		zap.L().Warn("api: record run failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
