package flow

import (
	"context"
	"encoding/json"
	"time"

	"promptcraft/common"
)

// Flow 将输入 schema、输出 schema 与调用逻辑绑定为一个具名的可调用单元
type Flow[I, O any] struct {
	name   string
	fn     func(ctx context.Context, in I) (*O, error)
	input  json.RawMessage
	output json.RawMessage
}

// Define 定义一个 flow
func Define[I, O any](name string, fn func(ctx context.Context, in I) (*O, error)) *Flow[I, O] {
	return &Flow[I, O]{
		name:   name,
		fn:     fn,
		input:  reflectSchema(new(I)),
		output: reflectSchema(new(O)),
	}
}

// Name 返回 flow 名称
func (f *Flow[I, O]) Name() string {
	return f.name
}

// InputSchema 返回输入的 JSON Schema
func (f *Flow[I, O]) InputSchema() json.RawMessage {
	return f.input
}

// OutputSchema 返回输出的 JSON Schema
func (f *Flow[I, O]) OutputSchema() json.RawMessage {
	return f.output
}

// Run 校验输入后执行 flow；输出为 nil 时返回 ErrNoOutput
// 底层模型错误原样返回，不做重试
func (f *Flow[I, O]) Run(ctx context.Context, in I) (*O, error) {
	if err := validateInput(f.name, in); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := f.fn(ctx, in)
	logger := common.WithFlow(f.name).WithField("elapsed", time.Since(start).String())
	if err != nil {
		logger.WithError(err).Warn("Flow failed")
		return nil, err
	}
	if out == nil {
		logger.Warn("Flow returned no output")
		return nil, ErrNoOutput
	}

	logger.Debug("Flow completed")
	return out, nil
}
