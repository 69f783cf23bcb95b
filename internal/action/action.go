// Package action 是图片生成提示词的服务端入口：接收 data URI，返回 {prompt} 或 {error}
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptcraft/common"
	"promptcraft/internal/flow"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/utils"
)

// Kind 结果分类
type Kind string

const (
	KindSuccess        Kind = "success"
	KindEmptyInput     Kind = "empty_input"
	KindEmptyResult    Kind = "empty_result"
	KindMalformedImage Kind = "malformed_image"
	KindUnknown        Kind = "unknown"
)

// 面向用户的错误信息
const (
	MsgEmptyInput     = "No image data provided."
	MsgEmptyResult    = "Failed to generate prompt. The result was empty."
	MsgMalformedImage = "The uploaded image could not be processed. It might be too large or in an unsupported format."
	MsgUnknown        = "An unexpected error occurred while generating the prompt."
)

// Result prompt 与 error 有且仅有一个非空
type Result struct {
	Prompt string `json:"prompt,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   Kind   `json:"-"`
}

// OK 是否成功
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// Failure 构造失败结果
func Failure(kind Kind) Result {
	return Result{Error: Message(kind), Kind: kind}
}

// Message 返回分类对应的用户可见信息
func Message(kind Kind) string {
	switch kind {
	case KindEmptyInput:
		return MsgEmptyInput
	case KindEmptyResult:
		return MsgEmptyResult
	case KindMalformedImage:
		return MsgMalformedImage
	default:
		return MsgUnknown
	}
}

// malformedStatusCodes 视为图片无法处理的 HTTP 状态码
var malformedStatusCodes = map[int]bool{
	400: true,
	413: true,
	415: true,
	422: true,
}

// Classify 按错误的结构化信息分类，不依赖错误文本
func Classify(err error) Kind {
	if err == nil {
		return KindSuccess
	}
	var inputErr *flow.InputError
	if errors.As(err, &inputErr) {
		return KindMalformedImage
	}
	if malformedStatusCodes[model.StatusCode(err)] {
		return KindMalformedImage
	}
	return KindUnknown
}

// Generator 图片生成提示词的 flow
type Generator interface {
	Run(ctx context.Context, in flow.ImagePromptInput) (*flow.ImagePromptOutput, error)
}

// Submitter 由上传控制器和 MCP 工具调用
type Submitter interface {
	Submit(ctx context.Context, photoDataURI string) Result
}

// Action 无状态，可被并发调用
type Action struct {
	flow Generator
}

// New 创建 Action
func New(f Generator) *Action {
	return &Action{flow: f}
}

// Submit 调用 flow 并将所有失败转换为固定的用户信息，从不返回 error 或 panic
func (a *Action) Submit(ctx context.Context, photoDataURI string) (result Result) {
	photoDataURI = strings.TrimSpace(photoDataURI)
	if photoDataURI == "" {
		common.Warn("Submit called without image data")
		return Failure(KindEmptyInput)
	}

	start := time.Now()
	logger := common.WithFields(map[string]interface{}{
		"image": utils.TruncateForLog(photoDataURI, 48),
		"size":  len(photoDataURI),
	})

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", fmt.Sprint(r)).Error("Prompt generation panicked")
			result = Failure(KindUnknown)
		}
	}()

	out, err := a.flow.Run(ctx, flow.ImagePromptInput{PhotoDataURI: photoDataURI})
	if err != nil {
		kind := Classify(err)
		logger.WithError(err).WithFields(map[string]interface{}{
			"kind":   kind,
			"status": model.StatusCode(err),
		}).Error("Error generating prompt from image")
		return Failure(kind)
	}

	if out == nil || out.Prompt == "" {
		logger.Warn("Prompt generation returned an empty result")
		return Failure(KindEmptyResult)
	}

	logger.WithField("elapsed", time.Since(start).String()).Info("Prompt generated")
	return Result{Prompt: out.Prompt, Kind: KindSuccess}
}
