package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	// Temporary marks errors worth surfacing as domain.ErrTemporary.
	Temporary bool
	// RecordFailure counts the error against the circuit breaker.
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

var (
	// Transient failures count against the breaker and may clear on their own.
	Transient = ErrorClassification{Temporary: true, RecordFailure: true}
	// Failed counts against the breaker without being worth a later attempt.
	Failed = ErrorClassification{RecordFailure: true}
	// Ignored errors belong to the caller, such as cancellation or a rejected payload.
	Ignored = ErrorClassification{}
)

type breakerCounts = gobreaker.Counts

var errNilCall = errors.New("resilience: nil call")

// Executor guards the calls to one remote dependency. Each operation name
// gets its own breaker; every call is attempted exactly once.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		breakers: map[string]*gobreaker.CircuitBreaker[struct{}]{},
	}
}

// Execute runs fn under the operation's breaker and the configured call
// timeout. A nil classifier counts every error as a breaker failure.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errNilCall
	}
	if classifier == nil {
		classifier = recordAll
	}

	run := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.cfg.CallTimeout == 0 {
			return fn(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		return fn(callCtx)
	}
	if !e.cfg.BreakerEnabled {
		return run()
	}

	_, err := e.breaker(opName(operation), classifier).Execute(func() (struct{}, error) {
		return struct{}{}, run()
	})
	return err
}

// State reports the breaker state for an operation, "closed" when none exists yet.
func (e *Executor) State(operation string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[opName(operation)]; ok {
		return cb.State().String()
	}
	return gobreaker.StateClosed.String()
}

// OpenOperations lists the operations whose breaker currently rejects calls.
func (e *Executor) OpenOperations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var open []string
	for name, cb := range e.breakers {
		if cb.State() == gobreaker.StateOpen {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return open
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: e.cfg.tripAfter,
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.cfg.OnStateChange != nil {
				e.cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func opName(operation string) string {
	if op := strings.TrimSpace(operation); op != "" {
		return op
	}
	return "unknown"
}

func recordAll(error) ErrorClassification {
	return Failed
}
