package controlapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/warren/internal/epilog"
	"github.com/cuemby/warren/internal/metrics"
	"github.com/cuemby/warren/internal/preempt"
	"github.com/cuemby/warren/internal/scheduler"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Preemptor bundles the Preemption Engine and the collaborators its
// Candidates call needs, scoped down from scheduler.Deps.
type Preemptor struct {
	Engine            *preempt.Engine
	Params            preempt.Params
	ReservationLookup preempt.ReservationLookup
}

// Deps bundles what the control surface needs beyond the scheduler loop
// itself: a way to look up a job and the running set for preemption
// inspection.
type Deps struct {
	Loop    *scheduler.Loop
	Table   scheduler.JobTable
	Preempt *Preemptor
	Epilog  *epilog.Interlock
	Logger  zerolog.Logger
}

// Server is the gorilla/mux HTTP control surface (spec.md §6 "External
// Interfaces").
type Server struct {
	deps   Deps
	router *mux.Router
	http   *http.Server
}

// NewServer builds a Server with every route registered.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, router: mux.NewRouter()}
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/schedule", s.handleSchedule).Methods(http.MethodPost)
	s.router.HandleFunc("/find_preemptable_jobs", s.handleFindPreemptable).Methods(http.MethodGet)
	s.router.HandleFunc("/epilog_complete", s.handleEpilogComplete).Methods(http.MethodPost)
	s.router.HandleFunc("/prolog_failed", s.handlePrologFailed).Methods(http.MethodPost)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return s
}

// Start runs the HTTP server on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.deps.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("controlapi request")
	})
}

type scheduleResponse struct {
	Started int    `json:"started"`
	Cutoff  string `json:"cutoff"`
}

// handleSchedule triggers one scheduling cycle. job_limit is accepted for
// API compatibility but the loop's own sched_max_job_start config governs
// the actual per-cycle start cap (spec.md §4.1 step 1).
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	result := s.deps.Loop.Run(time.Now())
	writeJSON(w, http.StatusOK, scheduleResponse{Started: result.Started, Cutoff: result.Cutoff})
}

type preemptableJob struct {
	JobID    string `json:"job_id"`
	Priority uint32 `json:"priority"`
}

// handleFindPreemptable enumerates the candidates the Preemption Engine
// would consider for the job named by the job_id query parameter (spec.md
// §4.5). Returns 404 if the job is unknown, 409 if preemption isn't wired.
func (s *Server) handleFindPreemptable(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	if s.deps.Preempt == nil || s.deps.Preempt.Engine == nil {
		writeError(w, http.StatusConflict, "preemption is not configured")
		return
	}

	job, ok := s.deps.Table.Job(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	candidates := s.deps.Preempt.Engine.Candidates(
		job,
		s.deps.Table.RunningJobs(),
		job.RequiredNodes,
		s.deps.Preempt.Params,
		s.deps.Preempt.ReservationLookup,
		time.Now(),
	)

	out := make([]preemptableJob, len(candidates))
	for i, c := range candidates {
		out[i] = preemptableJob{JobID: c.ID, Priority: c.Priority}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEpilogComplete is called by the detached epilog runner once a job's
// epilog script finishes on a node. remaining_nodes is the count still
// running the job's epilog elsewhere; the Completing flag only clears once
// it reaches zero (spec.md §4.7).
func (s *Server) handleEpilogComplete(w http.ResponseWriter, r *http.Request) {
	if s.deps.Epilog == nil {
		writeError(w, http.StatusConflict, "epilog interlock is not configured")
		return
	}
	jobID := r.URL.Query().Get("job_id")
	job, ok := s.deps.Table.Job(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	remaining, err := strconv.Atoi(r.URL.Query().Get("remaining_nodes"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "remaining_nodes must be an integer")
		return
	}
	s.deps.Epilog.EpilogFinished(job, remaining)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePrologFailed is called by the detached prolog runner when a job's
// prolog script fails on a node: the job is requeued once, killed on any
// repeat failure (spec.md §4.7, §4.8).
func (s *Server) handlePrologFailed(w http.ResponseWriter, r *http.Request) {
	if s.deps.Epilog == nil {
		writeError(w, http.StatusConflict, "epilog interlock is not configured")
		return
	}
	jobID := r.URL.Query().Get("job_id")
	job, ok := s.deps.Table.Job(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err := s.deps.Epilog.PrologFailed(job); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type healthzResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthzResponse{Status: "ok", Timestamp: time.Now()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
