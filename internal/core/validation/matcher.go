// Package validation normalizes model-emitted category values against the
// closed enumerations accepted by the record store.
package validation

import (
	"log/slog"
	"strings"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

// Matcher maps arbitrary input onto a closed, ordered set of values.
// Exact matches win over case-insensitive ones; anything else maps to Fallback.
type Matcher struct {
	Field    string
	Values   []string
	Fallback string
}

var (
	topicMatcher = Matcher{
		Field:    "topic",
		Values:   domain.Topics,
		Fallback: domain.TopicFallback,
	}
	studyTypeMatcher = Matcher{
		Field:    "study_type",
		Values:   domain.StudyTypes,
		Fallback: domain.StudyTypeFallback,
	}
)

func (m Matcher) Match(raw string) string {
	for _, v := range m.Values {
		if raw == v {
			return v
		}
	}
	for _, v := range m.Values {
		if strings.EqualFold(raw, v) {
			return v
		}
	}
	slog.Warn("metadata_value_coerced",
		"field", m.Field,
		"raw", raw,
		"fallback", m.Fallback,
	)
	return m.Fallback
}

func NormalizeTopic(raw string) string {
	return topicMatcher.Match(raw)
}

func NormalizeStudyType(raw string) string {
	return studyTypeMatcher.Match(raw)
}

// Normalize returns a copy of md with category fields coerced into their
// enumerations and placeholder links dropped.
func Normalize(md domain.ExtractedMetadata) domain.ExtractedMetadata {
	out := md
	out.Topic = NormalizeTopic(md.Topic)
	out.StudyType = NormalizeStudyType(md.StudyType)
	if md.Link != nil {
		link := strings.TrimSpace(*md.Link)
		if link == "" || strings.EqualFold(link, "n/a") {
			out.Link = nil
		} else {
			out.Link = &link
		}
	}
	return out
}
