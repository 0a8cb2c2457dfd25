package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/observability/metrics"
)

const (
	checkTimeout = 3 * time.Second
	maxRunsLimit = 200
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// RunLister reads recently finished workflow runs.
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]domain.WorkflowOutcome, error)
}

// Router serves the operational endpoints next to the socket mode loop.
type Router struct {
	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPServerMetrics
	checks         map[string]ReadinessCheck
	runs           RunLister
}

type RouterOptions struct {
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPServerMetrics
	Checks         map[string]ReadinessCheck
	Runs           RunLister
}

func NewRouter(options RouterOptions) *Router {
	return &Router{
		metricsHandler: options.MetricsHandler,
		httpMetrics:    options.HTTPMetrics,
		checks:         options.Checks,
		runs:           options.Runs,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.handle(mux, "/healthz", http.HandlerFunc(rt.healthz))
	rt.handle(mux, "/readyz", http.HandlerFunc(rt.readyz))
	rt.handle(mux, "/v1/runs", http.HandlerFunc(rt.listRuns))
	if rt.metricsHandler != nil {
		rt.handle(mux, "/metrics", rt.metricsHandler)
	}
	return withRequestID(withAccessLog(mux))
}

func (rt *Router) handle(mux *http.ServeMux, route string, h http.Handler) {
	if rt.httpMetrics != nil {
		h = rt.httpMetrics.Instrument(route, h)
	}
	mux.Handle(route, h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(rt.checks))
	for name := range rt.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := rt.checks[name](ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			slog.Warn("readiness_check_failed", "check", name, "error", err)
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"checks": results})
}

func (rt *Router) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if rt.runs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workflow journal is disabled"})
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRunsLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}

	runs, err := rt.runs.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("list_runs_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
