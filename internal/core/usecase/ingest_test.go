package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

type scratchFake struct {
	acquireErr error
	acquired   []string
	released   []string
}

func (f *scratchFake) Acquire(_ context.Context, remoteURL, _ string) (domain.ScratchFile, error) {
	if f.acquireErr != nil {
		return domain.ScratchFile{}, f.acquireErr
	}
	f.acquired = append(f.acquired, remoteURL)
	return domain.ScratchFile{Path: "/tmp/scratch-" + remoteURL[strings.LastIndex(remoteURL, "/")+1:], Size: 42}, nil
}

func (f *scratchFake) Release(file domain.ScratchFile) bool {
	f.released = append(f.released, file.Path)
	return true
}

type inspectorFake struct {
	pages int
	err   error
}

func (f *inspectorFake) Inspect(string) (int, error) {
	return f.pages, f.err
}

type extractorFake struct {
	result domain.ExtractionResult
	err    error
	hints  []string
}

func (f *extractorFake) Extract(_ context.Context, _ string, filenameHint string) (domain.ExtractionResult, error) {
	f.hints = append(f.hints, filenameHint)
	if f.err != nil {
		return domain.ExtractionResult{}, f.err
	}
	return f.result, nil
}

type recordStoreFake struct {
	createErr error
	attachErr error
	created   []map[string]any
	attached  []string

	attachedNames []string
}

func (f *recordStoreFake) CreateRecord(_ context.Context, _ string, fields map[string]any) (domain.PersistedRecord, error) {
	if f.createErr != nil {
		return domain.PersistedRecord{}, f.createErr
	}
	f.created = append(f.created, fields)
	return domain.PersistedRecord{ID: "recNEW", Fields: fields}, nil
}

func (f *recordStoreFake) AttachFile(_ context.Context, _, recordID, field, _, fileName string) (domain.PersistedRecord, error) {
	if f.attachErr != nil {
		return domain.PersistedRecord{}, f.attachErr
	}
	f.attached = append(f.attached, recordID+"/"+field)
	f.attachedNames = append(f.attachedNames, fileName)
	return domain.PersistedRecord{ID: recordID, HasAttachment: true}, nil
}

func (f *recordStoreFake) Search(context.Context, string, string) []domain.PersistedRecord {
	return []domain.PersistedRecord{}
}

func (f *recordStoreFake) RecordURL(recordID string) string {
	return "https://airtable.com/appBase/tblX/" + recordID + "?blocks=hide"
}

type successNote struct {
	dest      domain.Destination
	fileName  string
	metadata  domain.ExtractedMetadata
	recordURL string
}

type notifierFake struct {
	successErr error
	successes  []successNote
	errors     []string
}

func (f *notifierFake) NotifySuccess(_ context.Context, dest domain.Destination, fileName string, metadata domain.ExtractedMetadata, recordURL string) error {
	f.successes = append(f.successes, successNote{dest: dest, fileName: fileName, metadata: metadata, recordURL: recordURL})
	return f.successErr
}

func (f *notifierFake) NotifyError(_ context.Context, _ domain.Destination, message string) error {
	f.errors = append(f.errors, message)
	return nil
}

func (f *notifierFake) messages() int {
	return len(f.successes) + len(f.errors)
}

type sinkFake struct {
	err      error
	outcomes []domain.WorkflowOutcome
}

func (f *sinkFake) RecordOutcome(_ context.Context, outcome domain.WorkflowOutcome) error {
	f.outcomes = append(f.outcomes, outcome)
	return f.err
}

func (f *sinkFake) PublishOutcome(_ context.Context, outcome domain.WorkflowOutcome) error {
	f.outcomes = append(f.outcomes, outcome)
	return f.err
}

type observerFake struct {
	started  int
	finished []domain.WorkflowOutcome
	pages    []int
}

func (f *observerFake) StartWorkflow() { f.started++ }

func (f *observerFake) FinishWorkflow(outcome domain.WorkflowOutcome) {
	f.finished = append(f.finished, outcome)
}

func (f *observerFake) ObservePages(pages int) { f.pages = append(f.pages, pages) }

type ingestFixture struct {
	scratch   *scratchFake
	inspector *inspectorFake
	extractor *extractorFake
	records   *recordStoreFake
	notifier  *notifierFake
	journal   *sinkFake
	publisher *sinkFake
	observer  *observerFake
	uc        *IngestPDFUseCase
}

func newIngestFixture() *ingestFixture {
	year := 2025
	f := &ingestFixture{
		scratch:   &scratchFake{},
		inspector: &inspectorFake{pages: 12},
		extractor: &extractorFake{result: domain.ExtractionResult{
			Metadata: domain.ExtractedMetadata{
				Title:     "Generative AI in Class",
				Year:      &year,
				Topic:     "learning OUTCOMES",
				StudyType: "experimental",
				Summary:   "Students improved.",
			},
			ModelUsed: "gpt-4o",
		}},
		records:   &recordStoreFake{},
		notifier:  &notifierFake{},
		journal:   &sinkFake{},
		publisher: &sinkFake{},
		observer:  &observerFake{},
	}
	f.uc = NewIngestPDFUseCase(f.scratch, f.inspector, f.extractor, f.records, f.notifier, IngestOptions{
		DownloadToken: "xoxb-test",
		Journal:       f.journal,
		Publisher:     f.publisher,
		Observer:      f.observer,
	})
	return f
}

var (
	testRef  = domain.DocumentReference{Name: "2508.01234v2.pdf", RemoteURL: "https://files.example/F1", MimeType: domain.PDFMimeType}
	testDest = domain.Destination{ChannelID: "C1", ThreadTS: "1700000000.000100"}
)

func TestIngestSuccess(t *testing.T) {
	f := newIngestFixture()

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if !outcome.Success || outcome.Stage != domain.StageDone {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.RecordID != "recNEW" || outcome.ModelUsed != "gpt-4o" || outcome.Degraded {
		t.Fatalf("unexpected outcome details: %+v", outcome)
	}
	if len(f.notifier.successes) != 1 || len(f.notifier.errors) != 0 {
		t.Fatalf("expected exactly one success message, got %+v / %+v", f.notifier.successes, f.notifier.errors)
	}
	note := f.notifier.successes[0]
	if note.metadata.Topic != "Learning outcomes" || note.metadata.StudyType != "Experimental" {
		t.Fatalf("metadata not normalized: %+v", note.metadata)
	}
	if note.recordURL != "https://airtable.com/appBase/tblX/recNEW?blocks=hide" {
		t.Fatalf("unexpected record url %q", note.recordURL)
	}
	if note.dest != testDest || note.fileName != testRef.Name {
		t.Fatalf("unexpected destination: %+v", note)
	}
	if f.records.created[0]["Topic"] != "Learning outcomes" || f.records.created[0]["Year"] != 2025 {
		t.Fatalf("unexpected persisted fields: %+v", f.records.created[0])
	}
	if len(f.records.attached) != 1 || f.records.attached[0] != "recNEW/File" {
		t.Fatalf("unexpected attachment calls: %+v", f.records.attached)
	}
	if f.records.attachedNames[0] != testRef.Name {
		t.Fatalf("attachment uploaded as %q, want %q", f.records.attachedNames[0], testRef.Name)
	}
	if len(f.extractor.hints) != 1 || f.extractor.hints[0] != testRef.Name {
		t.Fatalf("filename hint not forwarded: %+v", f.extractor.hints)
	}
	if len(f.scratch.released) != 1 {
		t.Fatalf("expected one release, got %d", len(f.scratch.released))
	}
	if len(f.journal.outcomes) != 1 || len(f.publisher.outcomes) != 1 {
		t.Fatalf("outcome not reported to sinks")
	}
	if f.observer.started != 1 || len(f.observer.finished) != 1 || f.observer.pages[0] != 12 {
		t.Fatalf("unexpected observer state: %+v", f.observer)
	}
}

func TestIngestDownloadFailure(t *testing.T) {
	f := newIngestFixture()
	f.scratch.acquireErr = domain.WrapError(domain.ErrDownload, "acquire", errors.New("status 403"))

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if outcome.Success || outcome.Stage != domain.StageDownloading {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if f.notifier.messages() != 1 || !strings.Contains(f.notifier.errors[0], "download") {
		t.Fatalf("expected one download error message, got %+v", f.notifier.errors)
	}
	if len(f.extractor.hints) != 0 {
		t.Fatalf("extractor must not run after download failure")
	}
	if len(f.scratch.released) != 0 {
		t.Fatalf("nothing was acquired, nothing to release")
	}
	if len(f.journal.outcomes) != 1 {
		t.Fatalf("failed run must still be journaled")
	}
}

func TestIngestRejectsNonPDFDownload(t *testing.T) {
	f := newIngestFixture()
	f.inspector.err = errors.New("file is not a pdf document")

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if outcome.Success || outcome.Stage != domain.StageDownloading {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if f.notifier.messages() != 1 || !strings.Contains(f.notifier.errors[0], "download") {
		t.Fatalf("expected one download error message, got %+v", f.notifier.errors)
	}
	if len(f.scratch.released) != 1 {
		t.Fatalf("scratch file must be released, got %d", len(f.scratch.released))
	}
}

func TestIngestExtractionFailure(t *testing.T) {
	f := newIngestFixture()
	f.extractor.err = domain.WrapError(domain.ErrExtraction, "extract metadata", errors.New("gpt-4o-mini: 500"))

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if outcome.Success || outcome.Stage != domain.StageExtracting {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if f.notifier.messages() != 1 || !strings.HasPrefix(f.notifier.errors[0], "Metadata extraction failed") {
		t.Fatalf("expected one extraction error message, got %+v", f.notifier.errors)
	}
	if len(f.records.created) != 0 {
		t.Fatalf("nothing should be persisted after extraction failure")
	}
	if len(f.scratch.released) != 1 {
		t.Fatalf("scratch file must be released, got %d", len(f.scratch.released))
	}
}

func TestIngestPersistenceFailureStillNotifies(t *testing.T) {
	f := newIngestFixture()
	f.records.createErr = domain.WrapError(domain.ErrPersistence, "create record", errors.New("422"))

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if !outcome.Success || !outcome.Degraded || outcome.RecordID != "" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(f.notifier.successes) != 1 || len(f.notifier.errors) != 0 {
		t.Fatalf("expected summary without storage, got %+v / %+v", f.notifier.successes, f.notifier.errors)
	}
	if f.notifier.successes[0].recordURL != "" {
		t.Fatalf("expected no record link, got %q", f.notifier.successes[0].recordURL)
	}
	if len(f.scratch.released) != 1 {
		t.Fatalf("scratch file must be released")
	}
}

func TestIngestAttachmentFailureKeepsRecordWithoutLink(t *testing.T) {
	f := newIngestFixture()
	f.records.attachErr = domain.WrapError(domain.ErrAttachment, "upload attachment", errors.New("413"))

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if !outcome.Success || !outcome.Degraded {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.RecordID != "recNEW" {
		t.Fatalf("expected pre-attachment record id, got %q", outcome.RecordID)
	}
	if len(f.notifier.successes) != 1 || f.notifier.successes[0].recordURL != "" {
		t.Fatalf("expected one message without deep link, got %+v", f.notifier.successes)
	}
}

func TestIngestNotifyFailureIsNotRetried(t *testing.T) {
	f := newIngestFixture()
	f.notifier.successErr = errors.New("channel_not_found")

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if f.notifier.messages() != 1 {
		t.Fatalf("expected a single post attempt, got %d", f.notifier.messages())
	}
	if !strings.Contains(outcome.Error, "channel_not_found") {
		t.Fatalf("expected notify error recorded, got %q", outcome.Error)
	}
	if len(f.scratch.released) != 1 {
		t.Fatalf("scratch file must be released")
	}
}

func TestIngestSinkFailuresAreIgnored(t *testing.T) {
	f := newIngestFixture()
	f.journal.err = errors.New("db down")
	f.publisher.err = errors.New("nats down")

	outcome := f.uc.Ingest(context.Background(), testRef, testDest)

	if !outcome.Success || outcome.Error != "" {
		t.Fatalf("sink failures must not change the outcome: %+v", outcome)
	}
}

func TestIngestAllRunsSequentially(t *testing.T) {
	f := newIngestFixture()
	refs := []domain.DocumentReference{
		{Name: "a.pdf", RemoteURL: "https://files.example/A"},
		{Name: "b.pdf", RemoteURL: "https://files.example/B"},
	}

	outcomes := f.uc.IngestAll(context.Background(), refs, testDest)

	if len(outcomes) != 2 || outcomes[0].FileName != "a.pdf" || outcomes[1].FileName != "b.pdf" {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if outcomes[0].WorkflowID == outcomes[1].WorkflowID {
		t.Fatalf("runs must have distinct workflow ids")
	}
	if len(f.scratch.acquired) != 2 || len(f.scratch.released) != 2 {
		t.Fatalf("expected two independent acquisitions")
	}
	if len(f.notifier.successes) != 2 {
		t.Fatalf("expected one message per document, got %d", len(f.notifier.successes))
	}
}

func TestRecordFieldsOmitsUnknownValues(t *testing.T) {
	fields := RecordFields(domain.ExtractedMetadata{
		Title:     "T",
		Topic:     "Other",
		StudyType: "Review",
		Summary:   "S",
	})
	if _, ok := fields["Year"]; ok {
		t.Fatalf("year must be omitted when unknown")
	}
	if _, ok := fields["Link"]; ok {
		t.Fatalf("link must be omitted when unknown")
	}
	if len(fields) != 4 {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}
