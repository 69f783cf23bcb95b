package openai

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

// newSubmitter 把客户端指向返回固定响应的 httptest 服务
func newSubmitter(t *testing.T, status int, body string) (action.Submitter, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var hits atomic.Int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		data, _ := io.ReadAll(r.Body)
		lastBody.Store(string(data))
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "key", ModelName: "gpt-4o-mini", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)
	f, err := flow.NewImagePromptFlow(client)
	require.NoError(t, err)
	return action.New(f), &hits, &lastBody
}

func TestGenerateOverHTTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		submitter, hits, lastBody := newSubmitter(t, http.StatusOK, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1760000000,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "{\"prompt\":\"A lighthouse on a cliff at sunset.\"}"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 8, "total_tokens": 18}
		}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindSuccess, result.Kind)
		assert.Equal(t, "A lighthouse on a cliff at sunset.", result.Prompt)
		assert.Equal(t, int32(1), hits.Load())

		sent, _ := lastBody.Load().(string)
		assert.Contains(t, sent, `"json_schema"`)
		assert.Contains(t, sent, pngURI)
	})

	t.Run("bad request", func(t *testing.T) {
		submitter, hits, _ := newSubmitter(t, http.StatusBadRequest,
			`{"error":{"message":"Invalid image.","type":"invalid_request_error","code":"invalid_image"}}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindMalformedImage, result.Kind)
		assert.Equal(t, action.MsgMalformedImage, result.Error)
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("unavailable is not retried", func(t *testing.T) {
		submitter, hits, _ := newSubmitter(t, http.StatusServiceUnavailable,
			`{"error":{"message":"overloaded","type":"server_error"}}`)

		result := submitter.Submit(context.Background(), pngURI)
		assert.Equal(t, action.KindUnknown, result.Kind)
		assert.Equal(t, action.MsgUnknown, result.Error)
		assert.Equal(t, int32(1), hits.Load())
	})
}
