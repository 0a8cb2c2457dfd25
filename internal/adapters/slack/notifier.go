package slackadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const (
	defaultPostInterval = time.Second
	defaultPostBurst    = 3
)

// Poster sends rate limited messages. It implements ports.Notifier.
type Poster struct {
	api     API
	limiter *rate.Limiter
}

func NewPoster(api API, limiter *rate.Limiter) *Poster {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(defaultPostInterval), defaultPostBurst)
	}
	return &Poster{api: api, limiter: limiter}
}

func (p *Poster) NotifySuccess(ctx context.Context, dest domain.Destination, fileName string, metadata domain.ExtractedMetadata, recordURL string) error {
	return p.post(ctx, dest,
		slack.MsgOptionBlocks(SummaryBlocks(fileName, metadata, recordURL)...),
		slack.MsgOptionText(SummaryFallbackText(fileName), false),
	)
}

func (p *Poster) NotifyError(ctx context.Context, dest domain.Destination, message string) error {
	return p.post(ctx, dest, slack.MsgOptionText(ErrorText(message), false))
}

// Say posts plain text, threaded when dest carries a timestamp.
func (p *Poster) Say(ctx context.Context, dest domain.Destination, text string) error {
	return p.post(ctx, dest, slack.MsgOptionText(text, false))
}

func (p *Poster) post(ctx context.Context, dest domain.Destination, options ...slack.MsgOption) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for post slot: %w", err)
	}
	if dest.ThreadTS != "" {
		options = append(options, slack.MsgOptionTS(dest.ThreadTS))
	}
	channel, ts, err := p.api.PostMessageContext(ctx, dest.ChannelID, options...)
	if err != nil {
		return fmt.Errorf("post message to %s: %w", dest.ChannelID, err)
	}
	slog.Debug("slack_message_posted", "channel_id", channel, "ts", ts, "thread_ts", dest.ThreadTS)
	return nil
}
