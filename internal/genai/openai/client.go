package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"promptcraft/common"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/utils"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ProviderName 提供方名称
const ProviderName = "openai"

// Client OpenAI（及兼容接口）客户端实现
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// Config OpenAI 客户端配置
type Config struct {
	APIKey    string
	BaseURL   string // 可指向任意 OpenAI 兼容网关
	ModelName string
	Timeout   time.Duration
}

var _ model.Client = (*Client)(nil)

// NewClient 创建 OpenAI 客户端
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
	client := openai.NewClient(opts...)

	return &Client{
		client:  &client,
		model:   cfg.ModelName,
		timeout: cfg.Timeout,
	}, nil
}

// NewOpenAIClientFromConfig 从通用配置创建 OpenAI 客户端
func NewOpenAIClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:    cfg.GenAIAPIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIModelName,
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

// Generate 调用 Chat Completions 接口
func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	common.WithFields(map[string]interface{}{
		"model":  c.model,
		"prompt": req.Name,
		"images": len(req.MediaParts()),
	}).Debug("Calling OpenAI chat completion")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	contentParts := convertParts(req.Parts)
	if len(contentParts) == 0 {
		return nil, fmt.Errorf("request has no content parts")
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: contentParts,
					},
				},
			},
		},
	}
	if req.Output != nil {
		format, err := buildSchemaFormat(req.Output)
		if err != nil {
			return nil, err
		}
		params.ResponseFormat = format
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"model":  c.model,
			"prompt": req.Name,
		}).Error("Failed to create OpenAI chat completion")
		return nil, wrapError(err)
	}

	resp := &model.Response{
		Usage: model.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	if len(completion.Choices) > 0 {
		resp.Text = completion.Choices[0].Message.Content
		resp.FinishReason = string(completion.Choices[0].FinishReason)
	}

	common.WithFields(map[string]interface{}{
		"model":         c.model,
		"finish_reason": resp.FinishReason,
		"output":        utils.TruncateForLog(resp.Text, 120),
	}).Debug("OpenAI completion generated")

	return resp, nil
}

// convertParts 将通用 Part 转换为 OpenAI 的内容块；图片直接以 data URI 传递
func convertParts(parts []model.Part) []openai.ChatCompletionContentPartUnionParam {
	var result []openai.ChatCompletionContentPartUnionParam
	for _, p := range parts {
		switch {
		case p.Media != nil:
			result = append(result, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: p.Media.String(),
			}))
		case p.Text != "":
			result = append(result, openai.TextContentPart(p.Text))
		}
	}
	return result
}

// buildSchemaFormat 构造 strict 模式的 json_schema 输出格式
func buildSchemaFormat(out *model.OutputSchema) (openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal(out.Schema, &schemaMap); err != nil {
		return openai.ChatCompletionNewParamsResponseFormatUnion{}, fmt.Errorf("invalid output schema: %w", err)
	}
	// strict 模式要求所有 object 都声明 additionalProperties: false，且不接受 $schema
	delete(schemaMap, "$schema")
	addAdditionalPropertiesFalse(schemaMap)

	name := out.Name
	if name == "" {
		name = "response_schema"
	}

	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        name,
				Description: openai.String(out.Description),
				Schema:      schemaMap,
				Strict:      openai.Bool(true),
			},
		},
	}, nil
}

func addAdditionalPropertiesFalse(schema map[string]any) {
	if schema["type"] == "object" {
		schema["additionalProperties"] = false
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		for _, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				addAdditionalPropertiesFalse(propMap)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		addAdditionalPropertiesFalse(items)
	}
}

// wrapError 将 *openai.Error 包装为带状态码的 model.StatusError
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	return &model.StatusError{
		Provider: ProviderName,
		Code:     apiErr.StatusCode,
		Err:      err,
	}
}
