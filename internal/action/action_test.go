package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"promptcraft/internal/flow"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/genai/model/modeltest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jpegURI = "data:image/jpeg;base64,/9j/4AAQSkZJRgABAQ=="

func newAction(t *testing.T, client *modeltest.Client) *Action {
	t.Helper()
	f, err := flow.NewImagePromptFlow(client)
	require.NoError(t, err)
	return New(f)
}

type panicGenerator struct{}

func (panicGenerator) Run(ctx context.Context, in flow.ImagePromptInput) (*flow.ImagePromptOutput, error) {
	panic("boom")
}

type nilGenerator struct{}

func (nilGenerator) Run(ctx context.Context, in flow.ImagePromptInput) (*flow.ImagePromptOutput, error) {
	return nil, nil
}

func TestSubmit(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		client *modeltest.Client
		want   Result
	}{
		{
			name:   "success",
			input:  jpegURI,
			client: modeltest.Reply(`{"prompt":"A cat on a windowsill, soft morning light."}`),
			want:   Result{Prompt: "A cat on a windowsill, soft morning light.", Kind: KindSuccess},
		},
		{
			name:   "empty input",
			input:  "",
			client: modeltest.Reply(`{"prompt":"unused"}`),
			want:   Result{Error: MsgEmptyInput, Kind: KindEmptyInput},
		},
		{
			name:   "whitespace input",
			input:  "  \n",
			client: modeltest.Reply(`{"prompt":"unused"}`),
			want:   Result{Error: MsgEmptyInput, Kind: KindEmptyInput},
		},
		{
			name:   "empty prompt",
			input:  jpegURI,
			client: modeltest.Reply(`{"prompt":""}`),
			want:   Result{Error: MsgEmptyResult, Kind: KindEmptyResult},
		},
		{
			name:   "null output",
			input:  jpegURI,
			client: modeltest.Reply(`null`),
			want:   Result{Error: MsgUnknown, Kind: KindUnknown},
		},
		{
			name:   "bad request",
			input:  jpegURI,
			client: modeltest.Fail(&model.StatusError{Provider: "gemini", Code: 400, Err: errors.New("Provided image is not valid")}),
			want:   Result{Error: MsgMalformedImage, Kind: KindMalformedImage},
		},
		{
			name:   "payload too large",
			input:  jpegURI,
			client: modeltest.Fail(&model.StatusError{Provider: "openai", Code: 413, Err: errors.New("too large")}),
			want:   Result{Error: MsgMalformedImage, Kind: KindMalformedImage},
		},
		{
			name:   "wrapped unsupported media type",
			input:  jpegURI,
			client: modeltest.Fail(fmt.Errorf("generate: %w", &model.StatusError{Provider: "anthropic", Code: 415, Err: errors.New("unsupported")})),
			want:   Result{Error: MsgMalformedImage, Kind: KindMalformedImage},
		},
		{
			name:   "server error",
			input:  jpegURI,
			client: modeltest.Fail(&model.StatusError{Provider: "gemini", Code: 503, Err: errors.New("overloaded")}),
			want:   Result{Error: MsgUnknown, Kind: KindUnknown},
		},
		{
			name:   "error text alone does not classify",
			input:  jpegURI,
			client: modeltest.Fail(errors.New("invalid argument: image could not be decoded")),
			want:   Result{Error: MsgUnknown, Kind: KindUnknown},
		},
		{
			name:   "malformed data uri",
			input:  "data:image/png;base64,@@@",
			client: modeltest.Reply(`{"prompt":"unused"}`),
			want:   Result{Error: MsgMalformedImage, Kind: KindMalformedImage},
		},
		{
			name:   "not a data uri",
			input:  "hello",
			client: modeltest.Reply(`{"prompt":"unused"}`),
			want:   Result{Error: MsgMalformedImage, Kind: KindMalformedImage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAction(t, tt.client).Submit(context.Background(), tt.input)
			assert.Equal(t, tt.want, got)
			assert.True(t, (got.Prompt == "") != (got.Error == ""), "exactly one of prompt/error must be set")
		})
	}
}

func TestSubmitEmptyInputMakesNoCall(t *testing.T) {
	client := modeltest.Reply(`{"prompt":"unused"}`)
	newAction(t, client).Submit(context.Background(), "")
	assert.Zero(t, client.Calls())
}

func TestSubmitRecoversPanic(t *testing.T) {
	got := New(panicGenerator{}).Submit(context.Background(), jpegURI)
	assert.Equal(t, Failure(KindUnknown), got)
}

func TestSubmitNilOutput(t *testing.T) {
	got := New(nilGenerator{}).Submit(context.Background(), jpegURI)
	assert.Equal(t, Failure(KindEmptyResult), got)
}

func TestSubmitCancelledContext(t *testing.T) {
	client := &modeltest.Client{Block: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := newAction(t, client).Submit(ctx, jpegURI)
	assert.Equal(t, Failure(KindUnknown), got)
}

func TestSubmitIsIdempotent(t *testing.T) {
	client := modeltest.Reply(`{"prompt":"same every time"}`)
	a := newAction(t, client)

	first := a.Submit(context.Background(), jpegURI)
	second := a.Submit(context.Background(), jpegURI)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, client.Calls())
}

func TestSubmitConcurrent(t *testing.T) {
	client := &modeltest.Client{
		Handler: func(ctx context.Context, req *model.Request) (*model.Response, error) {
			media := req.MediaParts()
			return &model.Response{Text: fmt.Sprintf(`{"prompt":%q}`, media[0].MIMEType)}, nil
		},
	}
	a := newAction(t, client)

	inputs := map[string]string{
		"data:image/png;base64,iVBORw0KGgo=":  "image/png",
		"data:image/jpeg;base64,/9j/4AAQ":     "image/jpeg",
		"data:image/webp;base64,UklGRiQAAABX": "image/webp",
	}

	var wg sync.WaitGroup
	for uri, want := range inputs {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got := a.Submit(context.Background(), uri)
				assert.Equal(t, want, got.Prompt)
			}()
		}
	}
	wg.Wait()
	assert.Equal(t, 15, client.Calls())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindSuccess, Classify(nil))
	assert.Equal(t, KindMalformedImage, Classify(&flow.InputError{Flow: "f", Err: errors.New("bad")}))
	assert.Equal(t, KindMalformedImage, Classify(&model.StatusError{Code: 422}))
	assert.Equal(t, KindUnknown, Classify(&model.StatusError{Code: 429}))
	assert.Equal(t, KindUnknown, Classify(flow.ErrNoOutput))
	assert.Equal(t, KindUnknown, Classify(context.DeadlineExceeded))
}

func TestResultJSON(t *testing.T) {
	data, err := json.Marshal(Result{Prompt: "p", Kind: KindSuccess})
	require.NoError(t, err)
	assert.JSONEq(t, `{"prompt":"p"}`, string(data))

	data, err = json.Marshal(Failure(KindEmptyInput))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"No image data provided."}`, string(data))
}
