package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const (
	DefaultAttemptTimeout = 180 * time.Second
	cleanupTimeout        = 30 * time.Second
)

var DefaultModels = []string{"gpt-5", "gpt-4o", "gpt-4o-mini"}

// AttemptObserver receives one measurement per model attempt.
type AttemptObserver interface {
	ObserveExtractionAttempt(model string, err error, duration time.Duration)
}

type fileAPI interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
	StructuredResponse(ctx context.Context, model, fileID, instructions string, schema map[string]any) (string, error)
}

// Extractor uploads a document once and asks each candidate model in turn
// for structured metadata until one succeeds.
type Extractor struct {
	api            fileAPI
	models         []string
	attemptTimeout time.Duration
	decoder        *responseDecoder
	observer       AttemptObserver
}

type ExtractorOptions struct {
	Models         []string
	AttemptTimeout time.Duration
	Observer       AttemptObserver
}

func NewExtractor(client *Client, options ExtractorOptions) (*Extractor, error) {
	return newExtractor(client, options)
}

func newExtractor(api fileAPI, options ExtractorOptions) (*Extractor, error) {
	decoder, err := newResponseDecoder()
	if err != nil {
		return nil, err
	}
	models := options.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	timeout := options.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Extractor{
		api:            api,
		models:         append([]string(nil), models...),
		attemptTimeout: timeout,
		decoder:        decoder,
		observer:       options.Observer,
	}, nil
}

func (e *Extractor) Models() []string {
	return append([]string(nil), e.models...)
}

func (e *Extractor) Extract(ctx context.Context, localPath, filenameHint string) (domain.ExtractionResult, error) {
	fileID, err := e.api.UploadFile(ctx, localPath)
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExtraction, "upload document", err)
	}
	slog.Info("document_uploaded", "file_id", fileID, "file_name", filenameHint)
	defer e.deleteUpload(ctx, fileID)

	instructions := buildExtractionPrompt(filenameHint)
	schema := responseSchema()

	metadata, model, err := FirstSuccess(ctx, e.models, func(ctx context.Context, model string) (domain.ExtractedMetadata, error) {
		return e.attempt(ctx, model, fileID, instructions, schema)
	})
	if err != nil {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrExtraction, "extract metadata", err)
	}

	slog.Info("metadata_extracted", "model", model, "file_name", filenameHint)
	return domain.ExtractionResult{Metadata: metadata, ModelUsed: model}, nil
}

func (e *Extractor) attempt(ctx context.Context, model, fileID, instructions string, schema map[string]any) (domain.ExtractedMetadata, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	start := time.Now()
	md, err := e.structured(attemptCtx, model, fileID, instructions, schema)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("model %s exceeded %s: %w", model, e.attemptTimeout, err)
	}
	if e.observer != nil {
		e.observer.ObserveExtractionAttempt(model, err, time.Since(start))
	}
	return md, err
}

func (e *Extractor) structured(ctx context.Context, model, fileID, instructions string, schema map[string]any) (domain.ExtractedMetadata, error) {
	raw, err := e.api.StructuredResponse(ctx, model, fileID, instructions, schema)
	if err != nil {
		return domain.ExtractedMetadata{}, err
	}
	return e.decoder.Decode(raw)
}

// deleteUpload runs on a detached context so a cancelled run still cleans up.
func (e *Extractor) deleteUpload(ctx context.Context, fileID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := e.api.DeleteFile(cleanupCtx, fileID); err != nil {
		slog.Warn("uploaded_file_cleanup_failed", "file_id", fileID, "error", err)
		return
	}
	slog.Debug("uploaded_file_deleted", "file_id", fileID)
}
