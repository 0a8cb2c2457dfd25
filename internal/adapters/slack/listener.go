package slackadapter

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// Listener drains the socket mode event stream and feeds the handler one
// event at a time.
type Listener struct {
	client  *socketmode.Client
	handler *Handler
}

func NewListener(client *socketmode.Client, handler *Handler) *Listener {
	return &Listener{client: client, handler: handler}
}

func (l *Listener) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- l.client.RunContext(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case evt, ok := <-l.client.Events:
			if !ok {
				return nil
			}
			l.dispatch(ctx, evt)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		slog.Info("socket_mode_connecting")
	case socketmode.EventTypeConnected:
		slog.Info("socket_mode_connected")
	case socketmode.EventTypeConnectionError:
		slog.Warn("socket_mode_connection_error", "data", evt.Data)
	case socketmode.EventTypeEventsAPI:
		event, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			slog.Warn("socket_mode_unexpected_payload", "type", evt.Type)
			return
		}
		l.ack(evt)
		l.handler.HandleEventsAPI(ctx, event)
	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			slog.Warn("socket_mode_unexpected_payload", "type", evt.Type)
			return
		}
		l.ack(evt)
		l.handler.HandleInteraction(ctx, callback)
	default:
		slog.Debug("socket_mode_event_ignored", "type", evt.Type)
	}
}

func (l *Listener) ack(evt socketmode.Event) {
	if evt.Request == nil {
		return
	}
	l.client.Ack(*evt.Request)
}
