package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

func TestWorkflowMetricsCountsOutcomes(t *testing.T) {
	m := NewWorkflowMetrics("bot")
	start := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	m.StartWorkflow()
	m.StartWorkflow()
	if got := testutil.ToFloat64(m.workflowInFlight); got != 2 {
		t.Fatalf("expected 2 in flight, got %v", got)
	}

	m.FinishWorkflow(domain.WorkflowOutcome{Success: true, Degraded: true, Stage: domain.StageDone, StartedAt: start, FinishedAt: start.Add(40 * time.Second)})
	m.FinishWorkflow(domain.WorkflowOutcome{Success: false, Stage: domain.StageExtracting, StartedAt: start, FinishedAt: start.Add(time.Second)})

	if got := testutil.ToFloat64(m.workflowInFlight); got != 0 {
		t.Fatalf("expected 0 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.workflowTotal.WithLabelValues("bot", "success", "done")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(m.workflowTotal.WithLabelValues("bot", "error", "extracting")); got != 1 {
		t.Fatalf("expected one extraction error, got %v", got)
	}
	if got := testutil.ToFloat64(m.degradedTotal.WithLabelValues("bot")); got != 1 {
		t.Fatalf("expected one degraded run, got %v", got)
	}
}

func TestExtractionAttemptStatus(t *testing.T) {
	m := NewWorkflowMetrics("bot")

	m.ObserveExtractionAttempt("gpt-5", context.DeadlineExceeded, 180*time.Second)
	m.ObserveExtractionAttempt("gpt-4o", errors.New("500"), time.Second)
	m.ObserveExtractionAttempt("gpt-4o-mini", nil, 2*time.Second)

	cases := map[[2]string]float64{
		{"gpt-5", "timeout"}:       1,
		{"gpt-4o", "error"}:        1,
		{"gpt-4o-mini", "success"}: 1,
	}
	for labels, want := range cases {
		if got := testutil.ToFloat64(m.attemptTotal.WithLabelValues("bot", labels[0], labels[1])); got != want {
			t.Fatalf("attempts %v = %v, want %v", labels, got, want)
		}
	}
}

func TestMetricsHandlerExposesHTTPAndWorkflowSeries(t *testing.T) {
	m := NewWorkflowMetrics("bot")
	httpMetrics := NewHTTPServerMetrics("bot", m.Registry())
	m.ObservePages(12)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	rec := httptest.NewRecorder()
	httpMetrics.Instrument("/healthz", ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	body := httptest.NewRecorder()
	m.Handler().ServeHTTP(body, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := body.Body.String()

	for _, name := range []string{
		"research_bot_http_requests_total",
		"research_bot_workflow_document_pages",
		"go_goroutines",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
	if got := testutil.ToFloat64(httpMetrics.requests.WithLabelValues("/healthz", "get", "204")); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}
	if got := testutil.ToFloat64(httpMetrics.inFlight); got != 0 {
		t.Fatalf("expected no request in flight, got %v", got)
	}
}

func TestBreakerStateGauge(t *testing.T) {
	m := NewWorkflowMetrics("bot")

	m.ObserveBreakerState("airtable.create", "closed", "open")
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("airtable.create")); got != 1 {
		t.Fatalf("expected open gauge, got %v", got)
	}
	m.ObserveBreakerState("airtable.create", "open", "half-open")
	if got := testutil.ToFloat64(m.breakerOpen.WithLabelValues("airtable.create")); got != 0 {
		t.Fatalf("expected gauge reset, got %v", got)
	}
}
