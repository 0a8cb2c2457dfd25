package domain

import (
	"strings"
	"time"
)

const PDFMimeType = "application/pdf"

// DocumentReference identifies an inbound file before it is downloaded.
type DocumentReference struct {
	Name      string `json:"name"`
	RemoteURL string `json:"remote_url"`
	MimeType  string `json:"mimetype"`
}

// IsPDF reports whether the reference should trigger the ingestion workflow.
func (r DocumentReference) IsPDF() bool {
	return r.MimeType == PDFMimeType || strings.HasSuffix(strings.ToLower(r.Name), ".pdf")
}

// Destination is the conversation a workflow reports back to.
type Destination struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts,omitempty"`
}

type ScratchFile struct {
	Path string
	Size int64
}

type PersistedRecord struct {
	ID            string         `json:"id"`
	CreatedTime   time.Time      `json:"created_time"`
	Fields        map[string]any `json:"fields"`
	HasAttachment bool           `json:"has_attachment"`
}
