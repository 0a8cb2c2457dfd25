package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAcceptsOutOfEnumCategories(t *testing.T) {
	d, err := newResponseDecoder()
	require.NoError(t, err)

	md, err := d.Decode(`{"title":"Paper","year":2025,"topic":"learning OUTCOMES","study_type":"survey","link":null,"summary":"Findings."}`)
	require.NoError(t, err)
	assert.Equal(t, "Paper", md.Title)
	require.NotNil(t, md.Year)
	assert.Equal(t, 2025, *md.Year)
	assert.Equal(t, "learning OUTCOMES", md.Topic)
	assert.Nil(t, md.Link)
}

func TestDecodeRejectsInvalidResponses(t *testing.T) {
	d, err := newResponseDecoder()
	require.NoError(t, err)

	cases := map[string]string{
		"missing summary": `{"title":"Paper","year":null,"topic":"Other","study_type":"Review","link":null}`,
		"empty title":     `{"title":"","year":null,"topic":"Other","study_type":"Review","link":null,"summary":"s"}`,
		"string year":     `{"title":"t","year":"2020","topic":"Other","study_type":"Review","link":null,"summary":"s"}`,
		"year too old":    `{"title":"t","year":1850,"topic":"Other","study_type":"Review","link":null,"summary":"s"}`,
		"not json":        `Title: a paper`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Decode(raw)
			assert.Error(t, err)
		})
	}
}

func TestResponseSchemaRequiresEveryProperty(t *testing.T) {
	schema := responseSchema()
	props := schema["properties"].(map[string]any)
	required := schema["required"].([]string)
	assert.Len(t, required, len(props))
	assert.Equal(t, false, schema["additionalProperties"])
}
