package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/core/ports"
	"github.com/kirillkom/research-bot/internal/core/validation"
)

const (
	DefaultRecordTable     = "PDFs"
	DefaultAttachmentField = "File"

	reportTimeout = 10 * time.Second
)

// IngestPDFUseCase runs one document through download, extraction,
// normalization, persistence and notification. Every run posts exactly one
// message to its destination and releases its scratch file.
type IngestPDFUseCase struct {
	scratch   ports.ScratchStorage
	inspector ports.DocumentInspector
	extractor ports.MetadataExtractor
	records   ports.RecordStore
	notifier  ports.Notifier

	journal   ports.OutcomeJournal
	publisher ports.OutcomePublisher
	observer  ports.WorkflowObserver

	downloadToken   string
	table           string
	attachmentField string
	now             func() time.Time
}

type IngestOptions struct {
	// DownloadToken authorizes private file downloads from the chat platform.
	DownloadToken   string
	Table           string
	AttachmentField string

	Journal   ports.OutcomeJournal
	Publisher ports.OutcomePublisher
	Observer  ports.WorkflowObserver
}

func NewIngestPDFUseCase(
	scratch ports.ScratchStorage,
	inspector ports.DocumentInspector,
	extractor ports.MetadataExtractor,
	records ports.RecordStore,
	notifier ports.Notifier,
	options IngestOptions,
) *IngestPDFUseCase {
	table := options.Table
	if table == "" {
		table = DefaultRecordTable
	}
	field := options.AttachmentField
	if field == "" {
		field = DefaultAttachmentField
	}
	return &IngestPDFUseCase{
		scratch:         scratch,
		inspector:       inspector,
		extractor:       extractor,
		records:         records,
		notifier:        notifier,
		journal:         options.Journal,
		publisher:       options.Publisher,
		observer:        options.Observer,
		downloadToken:   options.DownloadToken,
		table:           table,
		attachmentField: field,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (uc *IngestPDFUseCase) Ingest(ctx context.Context, ref domain.DocumentReference, dest domain.Destination) domain.WorkflowOutcome {
	outcome := domain.WorkflowOutcome{
		WorkflowID: uuid.NewString(),
		FileName:   ref.Name,
		ChannelID:  dest.ChannelID,
		StartedAt:  uc.now(),
	}
	if uc.observer != nil {
		uc.observer.StartWorkflow()
	}
	slog.Info("workflow_started",
		"workflow_id", outcome.WorkflowID,
		"file_name", ref.Name,
		"channel_id", dest.ChannelID,
		"thread_ts", dest.ThreadTS,
	)

	uc.run(ctx, ref, dest, &outcome)

	outcome.FinishedAt = uc.now()
	uc.report(ctx, outcome)
	return outcome
}

// IngestAll processes refs one after another as independent runs.
func (uc *IngestPDFUseCase) IngestAll(ctx context.Context, refs []domain.DocumentReference, dest domain.Destination) []domain.WorkflowOutcome {
	outcomes := make([]domain.WorkflowOutcome, 0, len(refs))
	for _, ref := range refs {
		outcomes = append(outcomes, uc.Ingest(ctx, ref, dest))
	}
	return outcomes
}

func (uc *IngestPDFUseCase) run(ctx context.Context, ref domain.DocumentReference, dest domain.Destination, outcome *domain.WorkflowOutcome) {
	outcome.Stage = domain.StageDownloading
	file, err := uc.scratch.Acquire(ctx, ref.RemoteURL, uc.downloadToken)
	if err != nil {
		uc.fail(ctx, dest, outcome, "Failed to download PDF file", err)
		return
	}
	defer func() {
		uc.scratch.Release(file)
		if outcome.Success {
			outcome.Stage = domain.StageDone
		}
	}()

	if uc.inspector != nil {
		pages, err := uc.inspector.Inspect(file.Path)
		if err != nil {
			uc.fail(ctx, dest, outcome, "Failed to download PDF file", domain.WrapError(domain.ErrDownload, "inspect document", err))
			return
		}
		if uc.observer != nil {
			uc.observer.ObservePages(pages)
		}
		slog.Info("document_downloaded", "workflow_id", outcome.WorkflowID, "bytes", file.Size, "pages", pages)
	}

	outcome.Stage = domain.StageExtracting
	result, err := uc.extractor.Extract(ctx, file.Path, ref.Name)
	if err != nil {
		uc.fail(ctx, dest, outcome, "Metadata extraction failed", err)
		return
	}
	outcome.ModelUsed = result.ModelUsed

	outcome.Stage = domain.StageValidating
	metadata := validation.Normalize(result.Metadata)

	outcome.Stage = domain.StagePersisting
	recordURL := uc.persist(ctx, metadata, file.Path, ref.Name, outcome)

	outcome.Stage = domain.StageNotifying
	outcome.Success = true
	if err := uc.notifier.NotifySuccess(ctx, dest, ref.Name, metadata, recordURL); err != nil {
		outcome.Error = fmt.Sprintf("post summary: %v", err)
		slog.Error("workflow_notify_failed", "workflow_id", outcome.WorkflowID, "error", err)
	}
	outcome.Stage = domain.StageCleanup
}

// persist creates the row and attaches the file. It returns the deep link to
// show, or "" when the row or its attachment could not be stored.
func (uc *IngestPDFUseCase) persist(ctx context.Context, metadata domain.ExtractedMetadata, path, fileName string, outcome *domain.WorkflowOutcome) string {
	record, err := uc.records.CreateRecord(ctx, uc.table, RecordFields(metadata))
	if err != nil {
		outcome.Degraded = true
		slog.Error("workflow_persistence_failed", "workflow_id", outcome.WorkflowID, "table", uc.table, "error", err)
		return ""
	}
	outcome.RecordID = record.ID

	if _, err := uc.records.AttachFile(ctx, uc.table, record.ID, uc.attachmentField, path, fileName); err != nil {
		outcome.Degraded = true
		slog.Warn("workflow_attachment_failed", "workflow_id", outcome.WorkflowID, "record_id", record.ID, "error", err)
		return ""
	}
	slog.Info("workflow_record_saved", "workflow_id", outcome.WorkflowID, "record_id", record.ID)
	return uc.records.RecordURL(record.ID)
}

func (uc *IngestPDFUseCase) fail(ctx context.Context, dest domain.Destination, outcome *domain.WorkflowOutcome, message string, err error) {
	outcome.Success = false
	outcome.Error = err.Error()
	slog.Error("workflow_stage_failed",
		"workflow_id", outcome.WorkflowID,
		"stage", string(outcome.Stage),
		"file_name", outcome.FileName,
		"error", err,
	)
	if notifyErr := uc.notifier.NotifyError(ctx, dest, fmt.Sprintf("%s: %v", message, err)); notifyErr != nil {
		slog.Error("workflow_notify_failed", "workflow_id", outcome.WorkflowID, "error", notifyErr)
	}
}

// report hands the finished outcome to the optional sinks. Sink failures are
// logged only.
func (uc *IngestPDFUseCase) report(ctx context.Context, outcome domain.WorkflowOutcome) {
	if uc.observer != nil {
		uc.observer.FinishWorkflow(outcome)
	}
	slog.Info("workflow_finished",
		"workflow_id", outcome.WorkflowID,
		"success", outcome.Success,
		"stage", string(outcome.Stage),
		"model", outcome.ModelUsed,
		"record_id", outcome.RecordID,
		"degraded", outcome.Degraded,
		"duration_ms", outcome.Duration().Milliseconds(),
	)
	if uc.journal == nil && uc.publisher == nil {
		return
	}

	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if uc.journal != nil {
		if err := uc.journal.RecordOutcome(reportCtx, outcome); err != nil {
			slog.Warn("workflow_journal_failed", "workflow_id", outcome.WorkflowID, "error", err)
		}
	}
	if uc.publisher != nil {
		if err := uc.publisher.PublishOutcome(reportCtx, outcome); err != nil {
			slog.Warn("workflow_publish_failed", "workflow_id", outcome.WorkflowID, "error", err)
		}
	}
}

// RecordFields maps normalized metadata onto the PDFs table columns.
func RecordFields(metadata domain.ExtractedMetadata) map[string]any {
	fields := map[string]any{
		"Title":     metadata.Title,
		"Topic":     metadata.Topic,
		"StudyType": metadata.StudyType,
		"Summary":   metadata.Summary,
	}
	if metadata.Year != nil {
		fields["Year"] = *metadata.Year
	}
	if link := metadata.LinkText(); link != "" {
		fields["Link"] = link
	}
	return fields
}
