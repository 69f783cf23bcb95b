// Package modeltest 提供测试用的 model.Client 实现
package modeltest

import (
	"context"
	"sync"

	"promptcraft/internal/genai/model"
)

// Client 按预设返回结果的模型客户端，并记录收到的请求
type Client struct {
	mu       sync.Mutex
	requests []*model.Request

	// Text 为成功时返回的文本
	Text string
	// Err 非 nil 时直接返回该错误
	Err error
	// Block 非 nil 时 Generate 阻塞直到该 channel 关闭或 ctx 结束
	Block chan struct{}
	// Handler 非 nil 时优先使用
	Handler func(ctx context.Context, req *model.Request) (*model.Response, error)
}

// Reply 返回固定文本的客户端
func Reply(text string) *Client {
	return &Client{Text: text}
}

// Fail 返回固定错误的客户端
func Fail(err error) *Client {
	return &Client{Err: err}
}

func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	block := c.Block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.Handler != nil {
		return c.Handler(ctx, req)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return &model.Response{Text: c.Text, FinishReason: "STOP"}, nil
}

func (c *Client) Name() string {
	return "fake"
}

func (c *Client) Close() error {
	return nil
}

// Calls 返回调用次数
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Requests 返回收到的全部请求
func (c *Client) Requests() []*model.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.Request(nil), c.requests...)
}

// LastRequest 返回最后一次请求，没有时返回 nil
func (c *Client) LastRequest() *model.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}
