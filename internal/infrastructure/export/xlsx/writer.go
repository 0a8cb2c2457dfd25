package xlsx

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const SheetName = "PDFs"

type column struct {
	header string
	width  float64
	value  func(domain.PersistedRecord) any
}

var columns = []column{
	{header: "Record ID", width: 20, value: func(r domain.PersistedRecord) any { return r.ID }},
	{header: "Created", width: 22, value: func(r domain.PersistedRecord) any {
		if r.CreatedTime.IsZero() {
			return ""
		}
		return r.CreatedTime.UTC().Format(time.RFC3339)
	}},
	{header: "Title", width: 50, value: field("Title")},
	{header: "Year", width: 8, value: yearValue},
	{header: "Topic", width: 28, value: field("Topic")},
	{header: "Study Type", width: 16, value: field("StudyType")},
	{header: "Link", width: 40, value: field("Link")},
	{header: "Summary", width: 80, value: field("Summary")},
	{header: "File", width: 30, value: attachmentNames},
}

// Write renders records as a single sheet workbook.
func Write(w io.Writer, records []domain.PersistedRecord) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetCellValue(SheetName, name+"1", col.header); err != nil {
			return fmt.Errorf("write header %s: %w", col.header, err)
		}
		if err := f.SetColWidth(SheetName, name, name, col.width); err != nil {
			return fmt.Errorf("set width %s: %w", col.header, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(columns))
	if err := f.SetCellStyle(SheetName, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for row, record := range records {
		for col, c := range columns {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, c.value(record)); err != nil {
				return fmt.Errorf("write %s: %w", cell, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func field(name string) func(domain.PersistedRecord) any {
	return func(r domain.PersistedRecord) any {
		v, ok := r.Fields[name]
		if !ok || v == nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}

// yearValue keeps numeric years numeric; JSON decoding yields float64.
func yearValue(r domain.PersistedRecord) any {
	switch v := r.Fields["Year"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		return v
	default:
		return ""
	}
}

func attachmentNames(r domain.PersistedRecord) any {
	items, ok := r.Fields["File"].([]any)
	if !ok {
		return ""
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		att, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := att["filename"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
