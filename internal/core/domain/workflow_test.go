package domain

import (
	"testing"
	"time"
)

func TestWorkflowOutcomeStatus(t *testing.T) {
	tests := []struct {
		outcome WorkflowOutcome
		want    string
	}{
		{WorkflowOutcome{}, "failed"},
		{WorkflowOutcome{Degraded: true}, "failed"},
		{WorkflowOutcome{Success: true, Degraded: true}, "degraded"},
		{WorkflowOutcome{Success: true}, "ok"},
	}
	for _, tt := range tests {
		if got := tt.outcome.Status(); got != tt.want {
			t.Fatalf("Status(%+v) = %q, want %q", tt.outcome, got, tt.want)
		}
	}
}

func TestWorkflowOutcomeDurationNeverNegative(t *testing.T) {
	start := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	o := WorkflowOutcome{StartedAt: start, FinishedAt: start.Add(-time.Second)}
	if got := o.Duration(); got != 0 {
		t.Fatalf("Duration() = %v, want 0", got)
	}
}
