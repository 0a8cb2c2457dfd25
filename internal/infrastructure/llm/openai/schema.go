package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/kirillkom/research-bot/internal/core/domain"
)

const schemaName = "pdf_metadata"

// responseSchema is sent with every request. Strict structured outputs
// require every property to be listed as required; optional values are nullable.
func responseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "The title of the PDF document",
			},
			"year": map[string]any{
				"type":        []string{"integer", "null"},
				"description": "Publication year of the document, if available",
			},
			"topic": map[string]any{
				"type":        "string",
				"enum":        domain.Topics,
				"description": "Primary research topic category",
			},
			"study_type": map[string]any{
				"type":        "string",
				"enum":        domain.StudyTypes,
				"description": "Type of research study methodology",
			},
			"link": map[string]any{
				"type":        []string{"string", "null"},
				"description": "URL or DOI link to the original document, if mentioned in the PDF",
			},
			"summary": map[string]any{
				"type":        "string",
				"description": "A comprehensive summary of the document's key findings and contributions",
			},
		},
		"required":             []string{"title", "year", "topic", "study_type", "link", "summary"},
		"additionalProperties": false,
	}
}

// acceptanceSchema checks shape and types of a response. Category values are
// not checked against their enumerations here; validation.Normalize coerces them.
const acceptanceSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "year": {"type": ["integer", "null"]},
    "topic": {"type": "string"},
    "study_type": {"type": "string"},
    "link": {"type": ["string", "null"]},
    "summary": {"type": "string", "minLength": 1}
  },
  "required": ["title", "topic", "study_type", "summary"]
}`

type responseDecoder struct {
	schema   *gojsonschema.Schema
	validate *validator.Validate
}

func newResponseDecoder() (*responseDecoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(acceptanceSchema))
	if err != nil {
		return nil, fmt.Errorf("compile acceptance schema: %w", err)
	}
	return &responseDecoder{
		schema:   schema,
		validate: validator.New(),
	}, nil
}

func (d *responseDecoder) Decode(raw string) (domain.ExtractedMetadata, error) {
	result, err := d.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return domain.ExtractedMetadata{}, fmt.Errorf("load structured response: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return domain.ExtractedMetadata{}, fmt.Errorf("structured response violates schema: %s", strings.Join(problems, "; "))
	}

	var md domain.ExtractedMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return domain.ExtractedMetadata{}, fmt.Errorf("decode structured response: %w", err)
	}
	if err := d.validate.Struct(md); err != nil {
		return domain.ExtractedMetadata{}, fmt.Errorf("validate structured response: %w", err)
	}
	return md, nil
}
