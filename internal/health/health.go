// Package health provides HTTP health and status handlers for the local
// diagnostics listener.
//
// Three endpoints:
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//   - /statusz — current interview session snapshot (phase, session ID).
//
// Responses are JSON objects with a top-level "status" field ("ok" or
// "fail") and, for /readyz, a "checks" map with each named result.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prepwell/intervox/internal/session"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g. "backend",
	// "session"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// SessionState exposes the coarse runtime view the handlers need.
// Implemented by session.Runtime.
type SessionState interface {
	State() session.State
}

// SessionCheck reports failure when the session's connection is in the
// exhausted-retries degraded state.
func SessionCheck(rt SessionState) Checker {
	return Checker{
		Name: "session",
		Check: func(ctx context.Context) error {
			if rt.State().ReconnectFailed {
				return errors.New("connection failed after max reconnect attempts")
			}
			return nil
		},
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// statusz is the JSON response body for the session snapshot endpoint.
type statusz struct {
	Phase           session.Phase `json:"phase"`
	Mode            session.Mode  `json:"mode"`
	SessionID       string        `json:"session_id,omitempty"`
	Questions       int           `json:"questions"`
	HintsUsed       int           `json:"hints_used"`
	ReconnectFailed bool          `json:"reconnect_failed"`
}

// Handler serves the diagnostics endpoints. It is safe for concurrent use;
// the checker list is fixed at construction time.
type Handler struct {
	rt       SessionState
	checkers []Checker
}

// New creates a [Handler] over the session runtime. The checkers are
// evaluated sequentially on each /readyz request, in the order provided.
func New(rt SessionState, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{rt: rt, checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker is given a context with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// Statusz reports the current session snapshot.
func (h *Handler) Statusz(w http.ResponseWriter, _ *http.Request) {
	st := h.rt.State()
	questions := 0
	for _, e := range st.Log {
		if e.Kind == session.EntryQuestion {
			questions++
		}
	}
	writeJSON(w, http.StatusOK, statusz{
		Phase:           st.Phase,
		Mode:            st.Mode,
		SessionID:       st.SessionID,
		Questions:       questions,
		HintsUsed:       st.HintsUsed,
		ReconnectFailed: st.ReconnectFailed,
	})
}

// Register adds the diagnostics routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.HandleFunc("GET /statusz", h.Statusz)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
