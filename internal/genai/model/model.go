package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"promptcraft/internal/datauri"
)

// Client 一次性的多模态模型调用，不在调用之间保留任何状态
type Client interface {
	// Generate 发送一次请求；传输或 API 错误原样（或包装为 *StatusError）返回，不做重试
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Name 返回提供方名称，例如 gemini
	Name() string
	Close() error
}

// Part 请求中的一段内容：文本或内联图片，二选一
type Part struct {
	Text  string
	Media *datauri.DataURI
}

// OutputSchema 要求模型按 JSON Schema 返回结构化输出
type OutputSchema struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Request 一次模型调用的输入
type Request struct {
	// Name 调用名称（prompt 名），仅用于日志
	Name   string
	Parts  []Part
	Output *OutputSchema
}

// Usage token 用量
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response 模型返回的原始文本；有 OutputSchema 时为 JSON 文本
type Response struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// StatusError 带 HTTP 状态码的 API 错误，调用方按状态码而不是错误文本分类
type StatusError struct {
	Provider string
	Code     int
	Err      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %v", e.Provider, e.Code, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode 返回 HTTP 状态码
func (e *StatusError) StatusCode() int {
	return e.Code
}

// StatusCode 从错误链中提取 HTTP 状态码，没有时返回 0
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// TextParts 返回请求中的纯文本部分，便于日志与测试
func (r *Request) TextParts() []string {
	var texts []string
	for _, p := range r.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return texts
}

// MediaParts 返回请求中的图片部分
func (r *Request) MediaParts() []*datauri.DataURI {
	var media []*datauri.DataURI
	for _, p := range r.Parts {
		if p.Media != nil {
			media = append(media, p.Media)
		}
	}
	return media
}
