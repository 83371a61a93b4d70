package httpserver

import (
	"net/http"
	"time"

	"github.com/peter0524/service-fabric/internal/domain"
	"github.com/peter0524/service-fabric/internal/worker"
)

// WorkerServer exposes the per-worker HTTP surface spec §6.1 defines
// under /api/<service>/...: health, the coordinator-driven
// check-schedule tick, the on-demand execute bypass, and the latest
// emitted signal. One WorkerServer exists per cmd/worker process,
// bound to exactly one Worker (one ServiceKind).
type WorkerServer struct {
	W *worker.Worker
}

// NewWorkerServer builds a WorkerServer. No I/O is performed here.
func NewWorkerServer(w *worker.Worker) *WorkerServer {
	return &WorkerServer{W: w}
}

// HealthHandler reports the worker's own liveness.
func (s *WorkerServer) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": string(s.W.Kind)})
	}
}

// CheckScheduleHandler implements POST /check-schedule: the
// coordinator-driven tick that evaluates shouldExecuteNow and, if due,
// runs the pipeline to completion.
func (s *WorkerServer) CheckScheduleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := s.W.CheckSchedule(r.Context(), time.Now())
		writeJSON(w, http.StatusOK, result)
	}
}

// ExecuteHandler implements POST /execute: an on-demand pipeline run for
// the user named by X-User-ID (default user if absent), bypassing the
// schedule gate.
func (s *WorkerServer) ExecuteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			userID = domain.DefaultUserID
		}
		result, err := s.W.Execute(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": result.Executed, "message": result.Message, "details": result.Details})
	}
}

// SignalHandler implements GET /signal: the latest emitted signal, or a
// "none" sentinel if the worker has never emitted one.
func (s *WorkerServer) SignalHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sig, ok := s.W.Signals.LatestOrNone()
		if !ok {
			writeJSON(w, http.StatusOK, map[string]string{"message": "none"})
			return
		}
		writeJSON(w, http.StatusOK, sig)
	}
}
