package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://api.openai.com/v1"

// Client is a thin client for the Files and Responses endpoints. It holds
// only credentials and an HTTP connection pool and is safe to share.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	BaseURL            string
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(apiKey string, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

type uploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

// UploadFile stores a local file for use as model input and returns its id.
func (c *Client) UploadFile(ctx context.Context, localPath string) (string, error) {
	var out uploadedFile
	err := c.execute(ctx, "openai.files.upload", func(callCtx context.Context) error {
		return c.postFile(callCtx, "/files", localPath, "user_data", &out, "upload file")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("upload file", err)
	}
	if out.ID == "" {
		return "", errors.New("upload file: empty file id in response")
	}
	return out.ID, nil
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	var out struct {
		ID      string `json:"id"`
		Deleted bool   `json:"deleted"`
	}
	err := c.execute(ctx, "openai.files.delete", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, &out, "delete file")
	})
	if err != nil {
		return wrapTemporaryIfNeeded("delete file", err)
	}
	if !out.Deleted {
		return fmt.Errorf("delete file: %s not deleted", fileID)
	}
	return nil
}

type responseRequest struct {
	Model string          `json:"model"`
	Input []inputMessage  `json:"input"`
	Text  responseTextCfg `json:"text"`
}

type inputMessage struct {
	Role    string         `json:"role"`
	Content []inputContent `json:"content"`
}

type inputContent struct {
	Type   string `json:"type"`
	FileID string `json:"file_id,omitempty"`
	Text   string `json:"text,omitempty"`
}

type responseTextCfg struct {
	Format responseFormat `json:"format"`
}

type responseFormat struct {
	Type   string         `json:"type"`
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type responseEnvelope struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Refusal string `json:"refusal"`
		} `json:"content"`
	} `json:"output"`
}

// StructuredResponse asks model for output conforming to schema, using the
// previously uploaded file as input, and returns the raw JSON text.
func (c *Client) StructuredResponse(ctx context.Context, model, fileID, instructions string, schema map[string]any) (string, error) {
	request := responseRequest{
		Model: model,
		Input: []inputMessage{{
			Role: "user",
			Content: []inputContent{
				{Type: "input_file", FileID: fileID},
				{Type: "input_text", Text: instructions},
			},
		}},
		Text: responseTextCfg{Format: responseFormat{
			Type:   "json_schema",
			Name:   schemaName,
			Strict: true,
			Schema: schema,
		}},
	}

	var envelope responseEnvelope
	err := c.execute(ctx, "openai.responses."+model, func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, "/responses", request, &envelope, "create response")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("create response", err)
	}
	return envelope.outputText()
}

func (r responseEnvelope) outputText() (string, error) {
	if r.Error != nil && r.Error.Message != "" {
		return "", fmt.Errorf("response %s failed: %s: %s", r.ID, r.Error.Code, r.Error.Message)
	}
	if r.Status == "incomplete" {
		reason := "unknown"
		if r.IncompleteDetails != nil && r.IncompleteDetails.Reason != "" {
			reason = r.IncompleteDetails.Reason
		}
		return "", fmt.Errorf("response %s incomplete: %s", r.ID, reason)
	}

	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				b.WriteString(part.Text)
			case "refusal":
				return "", fmt.Errorf("response %s refused: %s", r.ID, part.Refusal)
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("response %s has no output text", r.ID)
	}
	return text, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyOpenAIError)
}
