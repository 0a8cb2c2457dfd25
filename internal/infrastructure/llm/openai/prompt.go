package openai

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

// arXiv identifiers: YYMM.NNNN or YYMM.NNNNN, optional version, optional extension.
var preprintName = regexp.MustCompile(`^(\d{2})(\d{2})\.\d{4,5}(v\d+)?(\.pdf)?$`)

// YearHint derives a publication year from a preprint-style file name.
// ok is false when the name does not follow the convention.
func YearHint(filename string) (year int, ok bool) {
	m := preprintName.FindStringSubmatch(strings.ToLower(filepath.Base(strings.TrimSpace(filename))))
	if m == nil {
		return 0, false
	}
	yy, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, false
	}
	return 2000 + yy, true
}

func buildExtractionPrompt(filenameHint string) string {
	var b strings.Builder
	b.WriteString(`Analyze the attached PDF and return its bibliographic metadata.

Fields:
- title: the document title exactly as printed.
- year: publication year as an integer, or null if the document does not state it.
- topic: the primary research topic, one of: `)
	b.WriteString(strings.Join(domain.Topics, "; "))
	b.WriteString(`.
- study_type: the research methodology, one of: `)
	b.WriteString(strings.Join(domain.StudyTypes, "; "))
	b.WriteString(`.
- link: URL or DOI of the original document if it is mentioned in the PDF, otherwise null.
- summary: a comprehensive summary of the key findings and contributions.
`)

	if year, ok := YearHint(filenameHint); ok {
		b.WriteString(fmt.Sprintf(`
The file name %q follows the arXiv naming scheme, which suggests the year %d.
Use it only if the document text does not state a publication year; a year found in the document always takes precedence.
`, filepath.Base(filenameHint), year))
	}
	return b.String()
}
