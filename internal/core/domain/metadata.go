package domain

import "strconv"

// Closed enumerations, in the order presented to the model.
var (
	Topics = []string{
		"Learning outcomes",
		"Tool development",
		"Professional practice",
		"Student perspectives",
		"User experience and interaction",
		"Theoretical background",
		"AI literacy",
		"Other",
	}

	StudyTypes = []string{
		"Review",
		"Experimental",
		"Quantitative",
		"Qualitative",
		"Mixed-methods",
		"Observational",
	}
)

const (
	TopicFallback     = "Other"
	StudyTypeFallback = "Review"
)

type ExtractedMetadata struct {
	Title     string  `json:"title" validate:"required"`
	Year      *int    `json:"year" validate:"omitempty,gte=1900,lte=2030"`
	Topic     string  `json:"topic"`
	StudyType string  `json:"study_type"`
	Link      *string `json:"link"`
	Summary   string  `json:"summary" validate:"required"`
}

// YearText renders the year for display, "N/A" when unknown.
func (m ExtractedMetadata) YearText() string {
	if m.Year == nil {
		return "N/A"
	}
	return strconv.Itoa(*m.Year)
}

// LinkText returns the link or an empty string.
func (m ExtractedMetadata) LinkText() string {
	if m.Link == nil {
		return ""
	}
	return *m.Link
}

type ExtractionResult struct {
	Metadata  ExtractedMetadata
	ModelUsed string
}
