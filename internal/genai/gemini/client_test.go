package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"promptcraft/internal/datauri"
	"promptcraft/internal/genai/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{ModelName: "gemini-2.0-flash"})
	assert.EqualError(t, err, "API key is required")

	_, err = NewClient(Config{APIKey: "key"})
	assert.EqualError(t, err, "model name is required")
}

func TestConvertParts(t *testing.T) {
	img := &datauri.DataURI{MIMEType: "image/png", Data: []byte{0x89, 0x50}}
	parts := convertParts([]model.Part{
		{Text: "describe this"},
		{Media: img},
		{},
	})

	require.Len(t, parts, 2)
	assert.Equal(t, "describe this", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
	assert.Equal(t, img.Data, parts[1].InlineData.Data)
}

func TestConvertJSONSchemaToGenaiSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"additionalProperties": false,
		"properties": {
			"prompt": {"type": "string", "description": "A text prompt that describes the image."},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["prompt"]
	}`)

	schema := ConvertJSONSchemaToGenaiSchema(raw)
	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"prompt"}, schema.Required)
	require.Contains(t, schema.Properties, "prompt")
	assert.Equal(t, genai.TypeString, schema.Properties["prompt"].Type)
	assert.Equal(t, "A text prompt that describes the image.", schema.Properties["prompt"].Description)
	require.NotNil(t, schema.Properties["tags"].Items)
	assert.Equal(t, genai.TypeString, schema.Properties["tags"].Items.Type)
}

func TestConvertJSONSchemaInvalid(t *testing.T) {
	assert.Nil(t, ConvertJSONSchemaToGenaiSchema(nil))
	assert.Nil(t, ConvertJSONSchemaToGenaiSchema(json.RawMessage(`not json`)))
}

func TestWrapError(t *testing.T) {
	t.Run("api error carries status code", func(t *testing.T) {
		apiErr := genai.APIError{Code: 400, Message: "Request payload size exceeds the limit", Status: "INVALID_ARGUMENT"}
		err := wrapError(fmt.Errorf("generate: %w", apiErr))

		var statusErr *model.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, ProviderName, statusErr.Provider)
		assert.Equal(t, 400, model.StatusCode(err))
	})

	t.Run("other errors pass through", func(t *testing.T) {
		base := errors.New("connection reset")
		assert.Same(t, base, wrapError(base))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, wrapError(nil))
	})
}
