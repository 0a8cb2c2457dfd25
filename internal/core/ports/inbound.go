package ports

import (
	"context"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

// DocumentIngestor is the inbound contract for the PDF ingestion workflow.
type DocumentIngestor interface {
	Ingest(ctx context.Context, ref domain.DocumentReference, dest domain.Destination) domain.WorkflowOutcome
	IngestAll(ctx context.Context, refs []domain.DocumentReference, dest domain.Destination) []domain.WorkflowOutcome
}

// RecordExporter reads persisted records for offline export.
type RecordExporter interface {
	Search(ctx context.Context, table, formula string) []domain.PersistedRecord
}
