package ports

import (
	"context"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

// ScratchStorage downloads remote files into uniquely named local files.
type ScratchStorage interface {
	Acquire(ctx context.Context, remoteURL, authToken string) (domain.ScratchFile, error)
	Release(file domain.ScratchFile) bool
}

// DocumentInspector checks a downloaded file is the document type it claims to be.
type DocumentInspector interface {
	Inspect(path string) (pages int, err error)
}

// MetadataExtractor produces structured metadata for a local document.
type MetadataExtractor interface {
	Extract(ctx context.Context, localPath, filenameHint string) (domain.ExtractionResult, error)
}

// RecordStore persists rows and attachments in the external tabular store.
type RecordStore interface {
	CreateRecord(ctx context.Context, table string, fields map[string]any) (domain.PersistedRecord, error)
	AttachFile(ctx context.Context, table, recordID, field, localPath, fileName string) (domain.PersistedRecord, error)
	Search(ctx context.Context, table, formula string) []domain.PersistedRecord
	RecordURL(recordID string) string
}

// Notifier reports workflow results back to the originating conversation.
type Notifier interface {
	NotifySuccess(ctx context.Context, dest domain.Destination, fileName string, metadata domain.ExtractedMetadata, recordURL string) error
	NotifyError(ctx context.Context, dest domain.Destination, message string) error
}

// OutcomeJournal records finished workflow runs.
type OutcomeJournal interface {
	RecordOutcome(ctx context.Context, outcome domain.WorkflowOutcome) error
}

// OutcomePublisher announces finished workflow runs to other processes.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, outcome domain.WorkflowOutcome) error
}

// WorkflowObserver receives workflow measurements.
type WorkflowObserver interface {
	StartWorkflow()
	FinishWorkflow(outcome domain.WorkflowOutcome)
	ObservePages(pages int)
}
