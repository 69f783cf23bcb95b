package model

import (
	"errors"
	"fmt"
	"testing"

	"promptcraft/internal/datauri"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", base, 0},
		{"status error", &StatusError{Provider: "gemini", Code: 400, Err: base}, 400},
		{"wrapped status error", fmt.Errorf("call: %w", &StatusError{Provider: "openai", Code: 503, Err: base}), 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestStatusErrorUnwrap(t *testing.T) {
	base := errors.New("bad request")
	err := &StatusError{Provider: "anthropic", Code: 400, Err: base}

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "anthropic api error (status 400): bad request", err.Error())
}

func TestRequestParts(t *testing.T) {
	img := &datauri.DataURI{MIMEType: "image/png", Data: []byte("x")}
	req := &Request{Parts: []Part{{Text: "describe"}, {Media: img}, {Text: "thanks"}}}

	assert.Equal(t, []string{"describe", "thanks"}, req.TextParts())
	assert.Equal(t, []*datauri.DataURI{img}, req.MediaParts())
}
