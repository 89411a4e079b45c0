package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/gif"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/descentviz/internal/config"
	"github.com/cwbudde/descentviz/internal/objective"
	"github.com/cwbudde/descentviz/internal/optim"
	"github.com/cwbudde/descentviz/internal/render"
	"github.com/cwbudde/descentviz/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	comparisonPanel  = 320
	comparisonHeight = 420
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	runner     *runner
	runStore   store.Store
	defaults   config.Config
	registry   *prometheus.Registry
	addr       string
	server     *http.Server

	// jobs run under ctx so Shutdown can cancel and wait for them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithDefaults sets the values applied to fields a request leaves out.
func WithDefaults(d config.Config) Option {
	return func(s *Server) { s.defaults = d }
}

// WithTraceDir overrides where trace.jsonl files are written. An empty dir
// disables traces.
func WithTraceDir(dir string) Option {
	return func(s *Server) { s.runner.traceDir = dir }
}

// NewServer creates a new HTTP server. runStore may be nil, in which case
// runs live only in memory. A *store.FSStore also receives trace files.
func NewServer(addr string, runStore store.Store, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	registry := prometheus.NewRegistry()
	jm := NewJobManager()

	s := &Server{
		jobManager: jm,
		runStore:   runStore,
		defaults:   config.Default(),
		registry:   registry,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
		runner: &runner{
			jm:      jm,
			store:   runStore,
			metrics: NewMetrics(registry),
		},
	}
	if fs, ok := runStore.(*store.FSStore); ok {
		s.runner.traceDir = fs.BaseDir()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
	mux.HandleFunc("/api/v1/functions", s.handleFunctions)
	mux.HandleFunc("/api/v1/optimizers", s.handleOptimizers)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and cancels pending runs
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// submit creates a job and runs it in the background.
func (s *Server) submit(cfg RunConfig) Job {
	job := s.jobManager.CreateJob(cfg)
	snapshot := job.snapshot()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runner.runJob(s.ctx, snapshot.ID)
	}()
	return snapshot
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetRun(w, r, runID)
		case http.MethodDelete:
			s.handleDeleteRun(w, r, runID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "plot.png":
		s.handlePlot(w, r, runID, render.FormatPNG)
	case "plot.gif":
		s.handlePlot(w, r, runID, render.FormatGIF)
	case "comparison.gif":
		s.handleComparison(w, r, runID)
	case "stream":
		s.handleJobStream(w, r, runID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}

	cfg, err := req.toConfig(s.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job := s.submit(cfg)
	writeJSON(w, http.StatusCreated, job)
}

// handleListRuns handles GET /api/v1/runs. Jobs of this process come first;
// stored runs from earlier processes follow.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	response := map[string]any{"jobs": jobs}
	if s.runStore != nil {
		infos, err := s.runStore.ListRuns()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		live := make(map[string]bool, len(jobs))
		for _, j := range jobs {
			live[j.ID] = true
		}
		stored := make([]store.RunInfo, 0, len(infos))
		for _, info := range infos {
			if !live[info.ID] {
				stored = append(stored, info)
			}
		}
		response["stored"] = stored
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetRun handles GET /api/v1/runs/:id
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	if job, exists := s.jobManager.GetJob(runID); exists {
		var elapsed time.Duration
		if job.EndTime != nil {
			elapsed = job.EndTime.Sub(job.StartTime)
		} else {
			elapsed = time.Since(job.StartTime)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job":     job,
			"elapsed": elapsed.Seconds(),
		})
		return
	}

	run, err := s.loadStored(runID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// handleDeleteRun handles DELETE /api/v1/runs/:id
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if job, exists := s.jobManager.GetJob(runID); exists && !isFinished(job.State) {
		writeError(w, http.StatusConflict, fmt.Errorf("run %s is still %s", runID, job.State))
		return
	}

	removed := s.jobManager.RemoveJob(runID)
	if s.runStore != nil {
		err := s.runStore.DeleteRun(runID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		removed = removed || err == nil
	}

	if !removed {
		writeError(w, http.StatusNotFound, &store.NotFoundError{RunID: runID})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePlot handles GET /api/v1/runs/:id/plot.{png,gif}. The GIF animates
// one optimizer, picked with ?optimizer= and defaulting to the first.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request, runID string, format render.Format) {
	plot, series, err := s.plotData(runID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	if format == render.FormatGIF {
		if name := r.URL.Query().Get("optimizer"); name != "" {
			series, err = pickSeries(series, name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
		} else {
			series = series[:1]
		}
	}

	s.writeImage(w, format, plot, series)
}

// handleComparison handles GET /api/v1/runs/:id/comparison.gif
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request, runID string) {
	plot, series, err := s.plotData(runID)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}

	// One panel per optimizer, each at least comparisonPanel wide
	plot.Width = max(render.DefaultWidth, comparisonPanel*len(series))
	plot.Height = comparisonHeight

	anim, err := render.RenderComparison(plot, series, render.DefaultAnimationOptions())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache")
	if err := gif.EncodeAll(w, anim); err != nil {
		slog.Error("Failed to encode GIF", "error", err)
	}
}

func (s *Server) writeImage(w http.ResponseWriter, format render.Format, plot render.Plot, series []render.Series) {
	contentType := "image/png"
	if format == render.FormatGIF {
		contentType = "image/gif"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")

	if err := render.Encode(w, format, plot, series, render.DefaultAnimationOptions()); err != nil {
		slog.Error("Failed to encode image", "format", format, "error", err)
	}
}

// plotData resolves the trajectories of a finished run, preferring the
// in-memory result over the store.
func (s *Server) plotData(runID string) (render.Plot, []render.Series, error) {
	if job, exists := s.jobManager.GetJob(runID); exists {
		result, ok := s.jobManager.Result(runID)
		if !ok {
			return render.Plot{}, nil, &notReadyError{runID: runID, state: job.State}
		}
		fn, err := objective.Lookup(result.Function)
		if err != nil {
			return render.Plot{}, nil, err
		}
		return render.Plot{Function: fn, Title: plotTitle(job.Config)}, seriesFromResult(result), nil
	}

	run, err := s.loadStored(runID)
	if err != nil {
		return render.Plot{}, nil, err
	}
	fn, err := objective.Lookup(run.Config.Function)
	if err != nil {
		return render.Plot{}, nil, err
	}
	return render.Plot{Function: fn, Title: plotTitle(run.Config)}, seriesFromRun(run), nil
}

func (s *Server) loadStored(runID string) (*store.Run, error) {
	if s.runStore == nil {
		return nil, &store.NotFoundError{RunID: runID}
	}
	return s.runStore.LoadRun(runID)
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	var notReady *notReadyError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.As(err, &notReady):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

// handleFunctions handles GET /api/v1/functions
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	type functionInfo struct {
		Name    string           `json:"name"`
		Domain  objective.Domain `json:"domain"`
		Minimum optim.Vector     `json:"minimum"`
	}

	names := objective.Names()
	out := make([]functionInfo, 0, len(names))
	for _, name := range names {
		fn, _ := objective.Lookup(name)
		out = append(out, functionInfo{Name: fn.Name, Domain: fn.Domain, Minimum: fn.Minimum})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleOptimizers handles GET /api/v1/optimizers
func (s *Server) handleOptimizers(w http.ResponseWriter, r *http.Request) {
	type optimizerInfo struct {
		Name         string        `json:"name"`
		LearningRate float64       `json:"defaultLearningRate"`
		Options      optim.Options `json:"options"`
	}

	kinds := optim.Kinds()
	out := make([]optimizerInfo, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, optimizerInfo{
			Name:         k.String(),
			LearningRate: optim.DefaultLearningRate(k),
			Options:      optim.DefaultOptions(k),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func isFinished(state JobState) bool {
	return state == StateCompleted || state == StateFailed || state == StateCancelled
}

func pickSeries(series []render.Series, name string) ([]render.Series, error) {
	kind, err := optim.ParseKind(name)
	if err != nil {
		return nil, err
	}
	for _, s := range series {
		if s.Name == kind.String() {
			return []render.Series{s}, nil
		}
	}
	return nil, fmt.Errorf("optimizer %s is not part of this run", kind)
}

// notReadyError is returned for image requests on runs still in progress.
type notReadyError struct {
	runID string
	state JobState
}

func (e *notReadyError) Error() string {
	return fmt.Sprintf("run %s has no result yet (state %s)", e.runID, e.state)
}
