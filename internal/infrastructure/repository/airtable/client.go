package airtable

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
)

const (
	DefaultAPIURL     = "https://api.airtable.com"
	DefaultContentURL = "https://content.airtable.com"
	DefaultWebURL     = "https://airtable.com"

	// uploadAttachment accepts at most 5 MB per request.
	DefaultMaxAttachmentBytes = 5 << 20

	maxSearchPages = 100
)

// Client talks to one Airtable base. It carries credentials and a
// connection pool only and is shared across workflow runs.
type Client struct {
	apiURL     string
	contentURL string
	webURL     string
	token      string
	baseID     string
	tableID    string
	viewID     string
	maxAttach  int64
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	APIURL             string
	ContentURL         string
	WebURL             string
	TableID            string
	ViewID             string
	MaxAttachmentBytes int64
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
}

func New(token, baseID string, options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	maxAttach := options.MaxAttachmentBytes
	if maxAttach <= 0 {
		maxAttach = DefaultMaxAttachmentBytes
	}
	return &Client{
		apiURL:     trimOr(options.APIURL, DefaultAPIURL),
		contentURL: trimOr(options.ContentURL, DefaultContentURL),
		webURL:     trimOr(options.WebURL, DefaultWebURL),
		token:      token,
		baseID:     baseID,
		tableID:    options.TableID,
		viewID:     options.ViewID,
		maxAttach:  maxAttach,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
	}
}

func trimOr(v, fallback string) string {
	if v == "" {
		v = fallback
	}
	return strings.TrimRight(v, "/")
}

type record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

func (r record) toDomain() domain.PersistedRecord {
	fields := r.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	return domain.PersistedRecord{
		ID:          r.ID,
		CreatedTime: r.CreatedTime,
		Fields:      fields,
	}
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", c.apiURL, url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]any) (domain.PersistedRecord, error) {
	payload := map[string]any{
		"fields":   fields,
		"typecast": true,
	}
	var out record
	err := c.execute(ctx, "airtable.create", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, c.tableURL(table), payload, &out, "create record")
	})
	if err != nil {
		slog.Error("airtable_create_failed", "table", table, "error", err)
		return domain.PersistedRecord{}, annotate(domain.ErrPersistence, "create record", err)
	}
	if out.ID == "" {
		return domain.PersistedRecord{}, domain.WrapError(domain.ErrPersistence, "create record", errors.New("empty record id in response"))
	}
	slog.Info("airtable_record_created", "table", table, "record_id", out.ID)
	return out.toDomain(), nil
}

func (c *Client) UpdateRecord(ctx context.Context, table, recordID string, fields map[string]any) (domain.PersistedRecord, error) {
	payload := map[string]any{
		"fields":   fields,
		"typecast": true,
	}
	var out record
	err := c.execute(ctx, "airtable.update", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(recordID), payload, &out, "update record")
	})
	if err != nil {
		slog.Error("airtable_update_failed", "table", table, "record_id", recordID, "error", err)
		return domain.PersistedRecord{}, annotate(domain.ErrPersistence, "update record", err)
	}
	return out.toDomain(), nil
}

// AttachFile uploads localPath into the attachment field of an existing row
// under fileName, or the local base name when fileName is empty. The row is
// never touched on failure.
func (c *Client) AttachFile(ctx context.Context, table, recordID, field, localPath, fileName string) (domain.PersistedRecord, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return domain.PersistedRecord{}, domain.WrapError(domain.ErrAttachment, "stat attachment", err)
	}
	if info.Size() > c.maxAttach {
		return domain.PersistedRecord{}, domain.WrapError(domain.ErrAttachment, "upload attachment",
			fmt.Errorf("file is %d bytes, limit is %d", info.Size(), c.maxAttach))
	}
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return domain.PersistedRecord{}, domain.WrapError(domain.ErrAttachment, "read attachment", err)
	}

	filename := attachmentName(fileName, localPath)
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	payload := map[string]any{
		"contentType": contentType,
		"file":        base64.StdEncoding.EncodeToString(raw),
		"filename":    filename,
	}
	endpoint := fmt.Sprintf("%s/v0/%s/%s/%s/uploadAttachment",
		c.contentURL, url.PathEscape(c.baseID), url.PathEscape(recordID), url.PathEscape(field))

	var out record
	err = c.execute(ctx, "airtable.upload_attachment", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, endpoint, payload, &out, "upload attachment")
	})
	if err != nil {
		slog.Error("airtable_attachment_failed", "table", table, "record_id", recordID, "field", field, "error", err)
		return domain.PersistedRecord{}, annotate(domain.ErrAttachment, "upload attachment", err)
	}

	rec := out.toDomain()
	if rec.ID == "" {
		rec.ID = recordID
	}
	rec.HasAttachment = true
	slog.Info("airtable_attachment_uploaded", "table", table, "record_id", rec.ID, "bytes", info.Size())
	return rec, nil
}

// Search returns the rows matching formula. A failed query also yields an
// empty slice, so callers cannot tell "no matches" from "query failed".
func (c *Client) Search(ctx context.Context, table, formula string) []domain.PersistedRecord {
	records, err := c.search(ctx, table, formula)
	if err != nil {
		slog.Warn("airtable_search_failed", "table", table, "formula", formula, "error", err)
		return []domain.PersistedRecord{}
	}
	slog.Info("airtable_search", "table", table, "records", len(records))
	return records
}

func (c *Client) search(ctx context.Context, table, formula string) ([]domain.PersistedRecord, error) {
	out := make([]domain.PersistedRecord, 0)
	offset := ""
	for page := 0; page < maxSearchPages; page++ {
		query := url.Values{}
		if formula != "" {
			query.Set("filterByFormula", formula)
		}
		if offset != "" {
			query.Set("offset", offset)
		}
		endpoint := c.tableURL(table)
		if encoded := query.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}

		var resp struct {
			Records []record `json:"records"`
			Offset  string   `json:"offset"`
		}
		err := c.execute(ctx, "airtable.search", func(callCtx context.Context) error {
			return c.doJSON(callCtx, http.MethodGet, endpoint, nil, &resp, "search records")
		})
		if err != nil {
			return nil, err
		}
		for _, r := range resp.Records {
			out = append(out, r.toDomain())
		}
		if resp.Offset == "" {
			return out, nil
		}
		offset = resp.Offset
	}
	return out, nil
}

func (c *Client) DeleteRecord(ctx context.Context, table, recordID string) bool {
	err := c.execute(ctx, "airtable.delete", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodDelete, c.tableURL(table)+"/"+url.PathEscape(recordID), nil, nil, "delete record")
	})
	if err != nil {
		slog.Error("airtable_delete_failed", "table", table, "record_id", recordID, "error", err)
		return false
	}
	slog.Info("airtable_record_deleted", "table", table, "record_id", recordID)
	return true
}

// RecordURL builds the deep link to a row, or "" when the table id is unknown.
func (c *Client) RecordURL(recordID string) string {
	if recordID == "" || c.tableID == "" || c.baseID == "" {
		return ""
	}
	parts := []string{c.webURL, c.baseID, c.tableID}
	if c.viewID != "" {
		parts = append(parts, c.viewID)
	}
	parts = append(parts, recordID)
	return strings.Join(parts, "/") + "?blocks=hide"
}

func attachmentName(fileName, localPath string) string {
	name := strings.TrimSpace(filepath.Base(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return filepath.Base(localPath)
	}
	return name
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyAirtableError)
}
