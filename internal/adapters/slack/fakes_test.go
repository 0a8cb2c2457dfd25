package slackadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

type postedMessage struct {
	channel string
	values  url.Values
}

func (m postedMessage) text() string     { return m.values.Get("text") }
func (m postedMessage) threadTS() string { return m.values.Get("thread_ts") }

func (m postedMessage) blocks(t *testing.T) []map[string]any {
	t.Helper()
	raw := m.values.Get("blocks")
	if raw == "" {
		return nil
	}
	var out []map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode blocks: %v", err)
	}
	return out
}

type fakeAPI struct {
	mu      sync.Mutex
	files   map[string]*slack.File
	history map[string][]slack.Message
	posts   []postedMessage
	postErr error
}

func (f *fakeAPI) GetFileInfoContext(_ context.Context, fileID string, _, _ int) (*slack.File, []slack.Comment, *slack.Paging, error) {
	file, ok := f.files[fileID]
	if !ok {
		return nil, nil, nil, errors.New("file_not_found")
	}
	return file, nil, nil, nil
}

// GetConversationHistoryContext answers like Slack: the newest top-level
// message at or before Latest, never a thread reply.
func (f *fakeAPI) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	resp := &slack.GetConversationHistoryResponse{}
	var newest *slack.Message
	for i, msg := range f.history[params.ChannelID] {
		if isReply(msg) || msg.Timestamp > params.Latest {
			continue
		}
		if newest == nil || msg.Timestamp > newest.Timestamp {
			newest = &f.history[params.ChannelID][i]
		}
	}
	if newest != nil {
		resp.Messages = append(resp.Messages, *newest)
	}
	return resp, nil
}

// GetConversationRepliesContext returns the thread parent followed by the
// requested message.
func (f *fakeAPI) GetConversationRepliesContext(_ context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	var target *slack.Message
	for i, msg := range f.history[params.ChannelID] {
		if msg.Timestamp == params.Timestamp {
			target = &f.history[params.ChannelID][i]
		}
	}
	if target == nil {
		return nil, false, "", slack.SlackErrorResponse{Err: "thread_not_found"}
	}
	var out []slack.Message
	for _, msg := range f.history[params.ChannelID] {
		if isReply(*target) && msg.Timestamp == target.ThreadTimestamp {
			out = append(out, msg)
		}
	}
	return append(out, *target), false, "", nil
}

func isReply(msg slack.Message) bool {
	return msg.ThreadTimestamp != "" && msg.ThreadTimestamp != msg.Timestamp
}

func (f *fakeAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", "", f.postErr
	}
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.com/api/", options...)
	if err != nil {
		return "", "", err
	}
	f.posts = append(f.posts, postedMessage{channel: channelID, values: values})
	return channelID, "1700000099.000100", nil
}

type ingestCall struct {
	refs []domain.DocumentReference
	dest domain.Destination
}

type fakeIngestor struct {
	calls []ingestCall
}

func (f *fakeIngestor) Ingest(_ context.Context, ref domain.DocumentReference, dest domain.Destination) domain.WorkflowOutcome {
	f.calls = append(f.calls, ingestCall{refs: []domain.DocumentReference{ref}, dest: dest})
	return domain.WorkflowOutcome{Success: true}
}

func (f *fakeIngestor) IngestAll(_ context.Context, refs []domain.DocumentReference, dest domain.Destination) []domain.WorkflowOutcome {
	f.calls = append(f.calls, ingestCall{refs: refs, dest: dest})
	return make([]domain.WorkflowOutcome, len(refs))
}

func unlimitedPoster(api API) *Poster {
	return NewPoster(api, rate.NewLimiter(rate.Inf, 1))
}

func newPDFServer(t *testing.T) *httptest.Server {
	t.Helper()
	body, err := os.ReadFile(writePDF(t))
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>sign in</html>"))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
