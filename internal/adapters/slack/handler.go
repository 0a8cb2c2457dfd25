package slackadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/core/ports"
)

const (
	TriggerReaction = "books"
	BotName         = "Research Bot"

	helpText = "Hi! I'm a research bot. Here's what I can do:\n\n" +
		"• Say \"hello\" - I'll greet you\n" +
		"• Say \"help\" - Show this help message\n" +
		"• Upload a PDF - I'll summarize it and file it in Airtable\n" +
		"• React with :books: to an older message with a PDF - I'll process it in that thread"
	mentionHelpText    = "Hi! Try DMing me 'help' for a full list of commands!"
	mentionDefaultText = "Hi! Try DMing me for more features, or say 'help' here!"
)

// Handler routes Slack events to the bot's behaviours. Each event is handled
// to completion before the call returns.
type Handler struct {
	api            API
	poster         *Poster
	ingestor       ports.DocumentIngestor
	loggingChannel string
}

func NewHandler(api API, poster *Poster, ingestor ports.DocumentIngestor, loggingChannel string) *Handler {
	return &Handler{
		api:            api,
		poster:         poster,
		ingestor:       ingestor,
		loggingChannel: loggingChannel,
	}
}

func (h *Handler) HandleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		slog.Debug("slack_event_ignored", "type", event.Type)
		return
	}

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.FileSharedEvent:
		h.handleFileShared(ctx, ev)
	case *slackevents.ReactionAddedEvent:
		h.handleReactionAdded(ctx, ev)
	case *slackevents.MessageEvent:
		h.handleMessage(ctx, ev)
	case *slackevents.AppMentionEvent:
		h.handleAppMention(ctx, ev)
	default:
		slog.Debug("slack_event_ignored", "type", event.InnerEvent.Type)
	}
}

func (h *Handler) HandleInteraction(_ context.Context, callback slack.InteractionCallback) {
	actions := make([]string, 0, len(callback.ActionCallback.BlockActions))
	for _, action := range callback.ActionCallback.BlockActions {
		actions = append(actions, action.ActionID)
	}
	slog.Info("slack_interaction",
		"type", string(callback.Type),
		"user_id", callback.User.ID,
		"channel_id", callback.Channel.ID,
		"actions", actions,
	)
}

// AnnounceStartup posts a startup line to the logging channel, if any.
func (h *Handler) AnnounceStartup(ctx context.Context) {
	if h.loggingChannel == "" {
		return
	}
	dest := domain.Destination{ChannelID: h.loggingChannel}
	if err := h.poster.Say(ctx, dest, fmt.Sprintf(":robot_face: %s is starting up!", BotName)); err != nil {
		slog.Warn("startup_message_failed", "channel_id", h.loggingChannel, "error", err)
		return
	}
	slog.Info("startup_message_sent", "channel_id", h.loggingChannel)
}

func (h *Handler) handleFileShared(ctx context.Context, ev *slackevents.FileSharedEvent) {
	if ev.FileID == "" {
		slog.Warn("file_shared_without_id", "channel_id", ev.ChannelID)
		return
	}
	file, _, _, err := h.api.GetFileInfoContext(ctx, ev.FileID, 0, 0)
	if err != nil {
		slog.Error("file_info_failed", "file_id", ev.FileID, "error", err)
		return
	}

	ref := fileReference(*file)
	if !ref.IsPDF() {
		slog.Info("file_skipped", "file_id", ev.FileID, "file_name", ref.Name, "mimetype", ref.MimeType)
		return
	}
	dest := domain.Destination{
		ChannelID: ev.ChannelID,
		ThreadTS:  shareTimestamp(*file, ev.ChannelID),
	}
	slog.Info("pdf_detected", "file_id", ev.FileID, "file_name", ref.Name, "thread_ts", dest.ThreadTS)
	h.ingestor.Ingest(ctx, ref, dest)
}

func (h *Handler) handleReactionAdded(ctx context.Context, ev *slackevents.ReactionAddedEvent) {
	if ev.Reaction != TriggerReaction || ev.Item.Type != "message" {
		return
	}
	msg, found, err := h.reactedMessage(ctx, ev.Item.Channel, ev.Item.Timestamp)
	if err != nil {
		slog.Error("reacted_message_fetch_failed", "channel_id", ev.Item.Channel, "ts", ev.Item.Timestamp, "error", err)
		return
	}
	if !found {
		slog.Warn("reacted_message_not_found", "channel_id", ev.Item.Channel, "ts", ev.Item.Timestamp)
		return
	}

	refs := make([]domain.DocumentReference, 0, len(msg.Files))
	for _, file := range msg.Files {
		if ref := fileReference(file); ref.IsPDF() {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		slog.Info("reacted_message_without_pdf", "channel_id", ev.Item.Channel, "ts", ev.Item.Timestamp)
		return
	}

	threadTS := msg.ThreadTimestamp
	if threadTS == "" {
		threadTS = msg.Timestamp
	}
	if threadTS == "" {
		threadTS = ev.Item.Timestamp
	}
	slog.Info("reaction_triggered", "user_id", ev.User, "channel_id", ev.Item.Channel, "pdfs", len(refs))
	h.ingestor.IngestAll(ctx, refs, domain.Destination{ChannelID: ev.Item.Channel, ThreadTS: threadTS})
}

// reactedMessage loads the message with exactly timestamp ts. History only
// holds top-level messages and answers with the newest one at or before
// ts, so a miss there is looked up among thread replies.
func (h *Handler) reactedMessage(ctx context.Context, channelID, ts string) (slack.Message, bool, error) {
	history, err := h.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Latest:    ts,
		Inclusive: true,
		Limit:     1,
	})
	if err != nil {
		return slack.Message{}, false, fmt.Errorf("conversation history: %w", err)
	}
	if msg, ok := messageAt(history.Messages, ts); ok {
		return msg, true, nil
	}

	replies, _, _, err := h.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: ts,
		Latest:    ts,
		Oldest:    ts,
		Inclusive: true,
	})
	if err != nil {
		var slackErr slack.SlackErrorResponse
		if errors.As(err, &slackErr) && slackErr.Err == "thread_not_found" {
			return slack.Message{}, false, nil
		}
		return slack.Message{}, false, fmt.Errorf("conversation replies: %w", err)
	}
	msg, ok := messageAt(replies, ts)
	return msg, ok, nil
}

func messageAt(messages []slack.Message, ts string) (slack.Message, bool) {
	for _, msg := range messages {
		if msg.Timestamp == ts {
			return msg, true
		}
	}
	return slack.Message{}, false
}

func (h *Handler) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	if ev.ChannelType != "im" || ev.BotID != "" || ev.SubType != "" {
		return
	}
	dest := domain.Destination{ChannelID: ev.Channel}

	switch {
	case hasWord(ev.Text, "hello", "hi"):
		h.reply(ctx, dest, fmt.Sprintf("Hey there <@%s>!", ev.User))
		h.mirror(ctx, fmt.Sprintf("HelloBot greeted user <@%s>", ev.User))
	case hasWord(ev.Text, "help"):
		h.reply(ctx, dest, helpText)
		h.mirror(ctx, fmt.Sprintf("HelpBot assisted user <@%s>", ev.User))
	default:
		slog.Info("dm_unrecognized", "user_id", ev.User, "text", ev.Text)
	}
}

func (h *Handler) handleAppMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	dest := domain.Destination{ChannelID: ev.Channel, ThreadTS: ev.ThreadTimeStamp}
	switch {
	case hasWord(ev.Text, "hello", "hi"):
		h.reply(ctx, dest, fmt.Sprintf("Hey there <@%s>!", ev.User))
	case hasWord(ev.Text, "help"):
		h.reply(ctx, dest, mentionHelpText)
	default:
		h.reply(ctx, dest, mentionDefaultText)
	}
}

func (h *Handler) reply(ctx context.Context, dest domain.Destination, text string) {
	if err := h.poster.Say(ctx, dest, text); err != nil {
		slog.Error("slack_reply_failed", "channel_id", dest.ChannelID, "error", err)
	}
}

func (h *Handler) mirror(ctx context.Context, text string) {
	if h.loggingChannel == "" {
		return
	}
	h.reply(ctx, domain.Destination{ChannelID: h.loggingChannel}, text)
}

func fileReference(file slack.File) domain.DocumentReference {
	return domain.DocumentReference{
		Name:      file.Name,
		RemoteURL: file.URLPrivateDownload,
		MimeType:  file.Mimetype,
	}
}

// shareTimestamp returns the ts of the first message that shared the file in
// channelID, public shares first.
func shareTimestamp(file slack.File, channelID string) string {
	if shares := file.Shares.Public[channelID]; len(shares) > 0 {
		return shares[0].Ts
	}
	if shares := file.Shares.Private[channelID]; len(shares) > 0 {
		return shares[0].Ts
	}
	return ""
}

func hasWord(text string, words ...string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		for _, word := range words {
			if token == word {
				return true
			}
		}
	}
	return false
}
