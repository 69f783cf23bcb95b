package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"promptcraft/common"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/utils"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ProviderName 提供方名称
const ProviderName = "anthropic"

// 结构化输出通过强制调用该工具实现，工具入参即为输出对象
const outputToolName = "emit_structured_output"

const defaultMaxTokens = 1024

// Client Anthropic 客户端实现
type Client struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

// Config Anthropic 客户端配置
type Config struct {
	APIKey    string
	BaseURL   string
	ModelName string
	MaxTokens int
	Timeout   time.Duration
}

var _ model.Client = (*Client)(nil)

// NewClient 创建 Anthropic 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	// 失败直接返回给调用方，不在 SDK 内部重试
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		client:    &client,
		model:     cfg.ModelName,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
	}, nil
}

// NewAnthropicClientFromConfig 从通用配置创建 Anthropic 客户端
func NewAnthropicClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:    cfg.GenAIAPIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIModelName,
		MaxTokens: cfg.GenAIMaxTokens,
		Timeout:   time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
}

// Name 返回提供方名称
func (c *Client) Name() string {
	return ProviderName
}

// Close 当前未持有需要显式关闭的资源
func (c *Client) Close() error {
	return nil
}

// Generate 调用 Messages 接口
func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	common.WithFields(map[string]interface{}{
		"model":  c.model,
		"prompt": req.Name,
		"images": len(req.MediaParts()),
	}).Debug("Calling Anthropic messages API")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	blocks := convertParts(req.Parts)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("request has no content parts")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.Output != nil {
		tool, choice, err := buildOutputTool(req.Output)
		if err != nil {
			return nil, err
		}
		params.Tools = []anthropic.ToolUnionParam{tool}
		params.ToolChoice = choice
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"model":  c.model,
			"prompt": req.Name,
		}).Error("Failed to create Anthropic message")
		return nil, wrapError(err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			if req.Output == nil {
				sb.WriteString(block.Text)
			}
		case "tool_use":
			if req.Output != nil && block.Name == outputToolName {
				sb.Write(block.Input)
			}
		}
	}

	resp := &model.Response{
		Text:         sb.String(),
		FinishReason: string(message.StopReason),
		Usage: model.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
		},
	}

	common.WithFields(map[string]interface{}{
		"model":         c.model,
		"finish_reason": resp.FinishReason,
		"output":        utils.TruncateForLog(resp.Text, 120),
	}).Debug("Anthropic message generated")

	return resp, nil
}

// convertParts 将通用 Part 转换为 Anthropic 内容块
func convertParts(parts []model.Part) []anthropic.ContentBlockParamUnion {
	var blocks []anthropic.ContentBlockParamUnion
	for _, p := range parts {
		switch {
		case p.Media != nil:
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.Media.MIMEType, p.Media.Base64()))
		case p.Text != "":
			// Anthropic 拒绝空文本块
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		}
	}
	return blocks
}

// buildOutputTool 用输出 schema 构造一个强制调用的工具
func buildOutputTool(out *model.OutputSchema) (anthropic.ToolUnionParam, anthropic.ToolChoiceUnionParam, error) {
	var schema map[string]any
	if err := json.Unmarshal(out.Schema, &schema); err != nil {
		return anthropic.ToolUnionParam{}, anthropic.ToolChoiceUnionParam{}, fmt.Errorf("invalid output schema: %w", err)
	}

	var required []string
	if reqVal, ok := schema["required"].([]any); ok {
		for _, r := range reqVal {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}

	description := out.Description
	if description == "" {
		description = "Output the response as structured JSON"
	}

	tool := anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        outputToolName,
			Description: anthropic.String(description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   required,
			},
		},
	}
	choice := anthropic.ToolChoiceUnionParam{
		OfTool: &anthropic.ToolChoiceToolParam{
			Name: outputToolName,
		},
	}
	return tool, choice, nil
}

// wrapError 将 *anthropic.Error 包装为带状态码的 model.StatusError
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	return &model.StatusError{
		Provider: ProviderName,
		Code:     apiErr.StatusCode,
		Err:      err,
	}
}
