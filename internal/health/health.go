// Package health exposes liveness and readiness probes for the server.
//
// Liveness (/healthz) reports only that the process is serving HTTP.
// Readiness (/readyz) runs every registered probe and reports 200 when all
// pass, 503 otherwise, with per-probe status and latency in the body:
//
//	{
//	  "status": "pass",
//	  "uptime_sec": 42.1,
//	  "checks": {
//	    "asr": {"status": "pass", "latency_ms": 0.3}
//	  }
//	}
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeDeadline caps how long a single readiness probe may run.
const probeDeadline = 3 * time.Second

// CheckFunc probes one dependency. It returns nil when healthy and must
// honour context cancellation.
type CheckFunc func(ctx context.Context) error

// Handler serves the probe endpoints. Register probes with [Handler.Check]
// before mounting; the handler itself is read-only while serving.
type Handler struct {
	started time.Time
	order   []string
	probes  map[string]CheckFunc
}

// checkResult is the per-probe JSON fragment.
type checkResult struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

// report is the probe response body.
type report struct {
	Status    string                 `json:"status"`
	UptimeSec float64                `json:"uptime_sec"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

// NewHandler creates an empty probe handler. The uptime clock starts now.
func NewHandler() *Handler {
	return &Handler{
		started: time.Now(),
		probes:  map[string]CheckFunc{},
	}
}

// Check registers a named readiness probe. Probes run in registration
// order; registering the same name twice replaces the earlier probe.
func (h *Handler) Check(name string, fn CheckFunc) {
	if _, exists := h.probes[name]; !exists {
		h.order = append(h.order, name)
	}
	h.probes[name] = fn
}

// Routes mounts /healthz and /readyz on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.liveness)
	mux.HandleFunc("GET /readyz", h.readiness)
}

// liveness answers 200 unconditionally; a process that reaches this handler
// is alive.
func (h *Handler) liveness(w http.ResponseWriter, _ *http.Request) {
	h.respond(w, http.StatusOK, report{
		Status:    "pass",
		UptimeSec: h.uptime(),
	})
}

// readiness runs every registered probe under its own deadline and answers
// 503 when any probe fails.
func (h *Handler) readiness(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status:    "pass",
		UptimeSec: h.uptime(),
		Checks:    make(map[string]checkResult, len(h.probes)),
	}
	code := http.StatusOK

	for _, name := range h.order {
		probeCtx, cancel := context.WithTimeout(r.Context(), probeDeadline)
		began := time.Now()
		err := h.probes[name](probeCtx)
		took := time.Since(began)
		cancel()

		res := checkResult{
			Status:    "pass",
			LatencyMS: float64(took.Microseconds()) / 1000.0,
		}
		if err != nil {
			res.Status = "fail"
			res.Error = err.Error()
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
		}
		rep.Checks[name] = res
	}

	h.respond(w, code, rep)
}

// uptime returns seconds since the handler was created.
func (h *Handler) uptime() float64 {
	return time.Since(h.started).Seconds()
}

// respond writes rep as JSON with the given status code. The body is
// marshalled before any header is written so an encoding failure can still
// produce a clean 500.
func (h *Handler) respond(w http.ResponseWriter, code int, rep report) {
	body, err := json.Marshal(rep)
	if err != nil {
		http.Error(w, `{"status":"fail"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(body)
}
