package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

var errUpstream = errors.New("upstream 503")

func failWith(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func countFailures(error) ErrorClassification {
	return ErrorClassification{Temporary: true, RecordFailure: true}
}

func TestExecuteRunsCallOnce(t *testing.T) {
	for _, breaker := range []bool{false, true} {
		exec := NewExecutor(Config{BreakerEnabled: breaker})
		calls := 0
		err := exec.Execute(context.Background(), "airtable.create", func(context.Context) error {
			calls++
			return errUpstream
		}, countFailures)
		if !errors.Is(err, errUpstream) {
			t.Fatalf("breaker=%v: expected upstream error, got %v", breaker, err)
		}
		if calls != 1 {
			t.Fatalf("breaker=%v: expected one call, got %d", breaker, calls)
		}
	}
}

func TestExecuteRejectsNilCall(t *testing.T) {
	if err := NewExecutor(DefaultConfig()).Execute(context.Background(), "op", nil, nil); !errors.Is(err, errNilCall) {
		t.Fatalf("expected errNilCall, got %v", err)
	}
}

func TestExecuteAppliesCallTimeout(t *testing.T) {
	exec := NewExecutor(Config{CallTimeout: 10 * time.Millisecond})

	err := exec.Execute(context.Background(), "openai.responses", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExecuteSkipsCallWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExecutor(Config{}).Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("callback must not run on a cancelled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBreakerOpensAndReportsState(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)
	exec := NewExecutor(Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  2,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
		OnStateChange: func(op, from, to string) {
			mu.Lock()
			transitions = append(transitions, op+":"+from+"->"+to)
			mu.Unlock()
		},
	})

	for i := 0; i < 2; i++ {
		_ = exec.Execute(context.Background(), "airtable.create", failWith(errUpstream), countFailures)
	}
	_ = exec.Execute(context.Background(), "airtable.search", failWith(nil), countFailures)

	err := exec.Execute(context.Background(), "airtable.create", func(context.Context) error {
		t.Fatalf("open breaker must not call through")
		return nil
	}, countFailures)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if got := exec.State("airtable.create"); got != "open" {
		t.Fatalf("expected open, got %s", got)
	}
	if got := exec.OpenOperations(); len(got) != 1 || got[0] != "airtable.create" {
		t.Fatalf("unexpected open operations %v", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != "airtable.create:closed->open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
}

func TestBreakerIgnoresUnrecordedFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled:      true,
		BreakerMinRequests:  1,
		BreakerFailureRatio: 0.1,
	})
	for i := 0; i < 3; i++ {
		_ = exec.Execute(context.Background(), "op", failWith(errors.New("422")), func(error) ErrorClassification {
			return ErrorClassification{}
		})
	}
	if exec.State("op") != "closed" {
		t.Fatalf("expected breaker to stay closed, got %s", exec.State("op"))
	}
	if len(exec.OpenOperations()) != 0 {
		t.Fatalf("expected no open operations")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{CallTimeout: -time.Second, BreakerFailureRatio: 3}.withDefaults()
	def := DefaultConfig()
	if cfg.CallTimeout != 0 {
		t.Fatalf("negative timeout should clamp to zero, got %v", cfg.CallTimeout)
	}
	if cfg.BreakerFailureRatio != def.BreakerFailureRatio || cfg.BreakerMinRequests != def.BreakerMinRequests {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.tripAfter(gobreaker.Counts{Requests: 4, TotalFailures: 4}) {
		t.Fatalf("must not trip below the minimum request count")
	}
	if !cfg.tripAfter(gobreaker.Counts{Requests: 5, TotalFailures: 3}) {
		t.Fatalf("expected trip at 60%% failures")
	}
}
