package pdfinspect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("file is not a pdf document")

var magic = []byte("%PDF-")

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

// Inspect verifies the file starts with the PDF header and returns its page
// count. A file that has the header but cannot be parsed reports zero pages
// and no error.
func (i *Inspector) Inspect(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open document: %w", err)
	}
	header := make([]byte, len(magic))
	_, err = io.ReadFull(f, header)
	_ = f.Close()
	if err != nil || !bytes.Equal(header, magic) {
		return 0, ErrNotPDF
	}

	pages, err := countPages(path)
	if err != nil {
		slog.Warn("pdf_page_count_failed", "path", path, "error", err)
		return 0, nil
	}
	return pages, nil
}

func countPages(path string) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}
