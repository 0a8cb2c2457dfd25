package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "research.pdf.processed"
	statusHeader   = "Research-Bot-Status"
)

// OutcomeBus publishes finished workflow runs and lets other processes
// follow them.
type OutcomeBus struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

// Options tunes the connection. Zero values fall back to defaults; a
// negative MaxReconnects reconnects forever.
type Options struct {
	ConnectTimeout     time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func New(url, subject string, options Options) (*OutcomeBus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, connectOptions(options)...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &OutcomeBus{conn: conn, subject: subject, executor: options.ResilienceExecutor}, nil
}

// connectOptions retries the first connect in the background. Outcomes
// published meanwhile wait in the reconnect buffer.
func connectOptions(options Options) []nats.Option {
	timeout := options.ConnectTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	reconnects := options.MaxReconnects
	if reconnects == 0 {
		reconnects = 60
	}
	return []nats.Option{
		nats.Name("research-bot"),
		nats.Timeout(timeout),
		nats.MaxReconnects(reconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("outcome_bus_disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("outcome_bus_reconnected", "server", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			slog.Debug("outcome_bus_closed")
		}),
	}
}

func (b *OutcomeBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

// Ping reports whether the connection is currently usable.
func (b *OutcomeBus) Ping(context.Context) error {
	if b.conn == nil || !b.conn.IsConnected() {
		return errors.New("nats connection is not established")
	}
	return nil
}

func (b *OutcomeBus) PublishOutcome(ctx context.Context, outcome domain.WorkflowOutcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	msg := outcomeMessage(b.subject, outcome, payload)
	call := func(_ context.Context) error {
		if err := b.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// outcomeMessage carries the workflow id as Nats-Msg-Id so a JetStream
// stream on the subject drops duplicates.
func outcomeMessage(subject string, outcome domain.WorkflowOutcome, payload []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if outcome.WorkflowID != "" {
		msg.Header.Set(nats.MsgIdHdr, outcome.WorkflowID)
	}
	msg.Header.Set(statusHeader, outcome.Status())
	return msg
}

// SubscribeOutcomes delivers every published outcome to handler until ctx
// is cancelled, then drains the subscription.
func (b *OutcomeBus) SubscribeOutcomes(ctx context.Context, handler func(context.Context, domain.WorkflowOutcome) error) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_subscribed", "subject", b.subject)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func handleMessage(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.WorkflowOutcome) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	var outcome domain.WorkflowOutcome
	if err := json.Unmarshal(msg.Data, &outcome); err != nil {
		slog.Warn("nats_outcome_malformed", "subject", msg.Subject, "error", err)
		return
	}
	if err := handler(ctx, outcome); err != nil {
		slog.Error("nats_outcome_handler_failed", "workflow_id", outcome.WorkflowID, "error", err)
	}
}
