package openai

import (
	"encoding/json"
	"errors"
	"testing"

	"promptcraft/internal/datauri"
	"promptcraft/internal/genai/model"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{ModelName: "gpt-4o-mini"})
	assert.EqualError(t, err, "API key is required")

	_, err = NewClient(Config{APIKey: "key"})
	assert.EqualError(t, err, "model name is required")

	c, err := NewClient(Config{APIKey: "key", ModelName: "gpt-4o-mini", BaseURL: "http://localhost:9999/v1"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, c.Name())
}

func TestConvertParts(t *testing.T) {
	img := &datauri.DataURI{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
	parts := convertParts([]model.Part{{Text: "describe"}, {Media: img}, {}})

	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].OfText)
	assert.Equal(t, "describe", parts[0].OfText.Text)
	require.NotNil(t, parts[1].OfImageURL)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", parts[1].OfImageURL.ImageURL.URL)
}

func TestBuildSchemaFormat(t *testing.T) {
	out := &model.OutputSchema{
		Name:        "ImagePromptOutput",
		Description: "prompt output",
		Schema: json.RawMessage(`{
			"$schema": "https://json-schema.org/draft/2020-12/schema",
			"type": "object",
			"properties": {"prompt": {"type": "string"}},
			"required": ["prompt"]
		}`),
	}

	format, err := buildSchemaFormat(out)
	require.NoError(t, err)
	require.NotNil(t, format.OfJSONSchema)

	js := format.OfJSONSchema.JSONSchema
	assert.Equal(t, "ImagePromptOutput", js.Name)

	schema, ok := js.Schema.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, schema, "$schema")
	assert.Equal(t, false, schema["additionalProperties"])

	_, err = buildSchemaFormat(&model.OutputSchema{Schema: json.RawMessage(`{`)})
	assert.Error(t, err)
}

func TestWrapError(t *testing.T) {
	apiErr := &openai.Error{StatusCode: 400}
	err := wrapError(apiErr)

	var statusErr *model.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 400, statusErr.StatusCode())
	assert.Equal(t, ProviderName, statusErr.Provider)

	base := errors.New("dial tcp: connection refused")
	assert.Same(t, base, wrapError(base))
}
