package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"promptcraft/internal/action"
	"promptcraft/internal/flow"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngURI = "data:image/png;base64,iVBORw0KGgo="

func newSubmitter(t *testing.T, status int, body string) (action.Submitter, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "key", ModelName: "gemini-2.0-flash", BaseURL: srv.URL})
	require.NoError(t, err)
	f, err := flow.NewImagePromptFlow(client)
	require.NoError(t, err)
	return action.New(f), &hits
}

func TestGenerateOverHTTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		submitter, hits := newSubmitter(t, http.StatusOK, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "{\"prompt\":\"Morning fog over rice terraces.\"}"}]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 20, "candidatesTokenCount": 7}
		}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindSuccess, result.Kind)
		assert.Equal(t, "Morning fog over rice terraces.", result.Prompt)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("bad request", func(t *testing.T) {
		submitter, hits := newSubmitter(t, http.StatusBadRequest,
			`{"error":{"code":400,"message":"Unable to process input image.","status":"INVALID_ARGUMENT"}}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindMalformedImage, result.Kind)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("unavailable is not retried", func(t *testing.T) {
		submitter, hits := newSubmitter(t, http.StatusServiceUnavailable,
			`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindUnknown, result.Kind)
		assert.Equal(t, int32(1), hits.Load())
	})
}
