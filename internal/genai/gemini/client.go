package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"promptcraft/common"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/utils"

	"google.golang.org/genai"
)

// ProviderName 提供方名称
const ProviderName = "gemini"

// Client Gemini 客户端实现
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    string        // API Key
	BaseURL   string        // 自定义 Base URL，如果为空则使用默认值
	ModelName string        // 模型名称，例如：gemini-2.0-flash
	Timeout   time.Duration // 请求超时时间，0 表示不额外设置
}

var _ model.Client = (*Client)(nil)

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	// 构建客户端配置
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}

	// 如果提供了自定义 Base URL，设置 HTTPOptions
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &Client{
		client:  client,
		model:   cfg.ModelName,
		timeout: cfg.Timeout,
	}, nil
}

// Name 返回提供方名称
func (c *Client) Name() string {
	return ProviderName
}

// Close 关闭客户端（genai.Client 不需要显式关闭）
func (c *Client) Close() error {
	return nil
}

// Generate 调用 GenerateContent，返回模型输出的文本
func (c *Client) Generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	common.WithFields(map[string]interface{}{
		"model":  c.model,
		"prompt": req.Name,
		"images": len(req.MediaParts()),
	}).Debug("Calling Gemini GenerateContent")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := convertParts(req.Parts)
	if len(parts) == 0 {
		return nil, fmt.Errorf("request has no content parts")
	}

	config := &genai.GenerateContentConfig{}
	if req.Output != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = ConvertJSONSchemaToGenaiSchema(req.Output.Schema)
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Parts: parts},
	}, config)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"model":  c.model,
			"prompt": req.Name,
		}).Error("Failed to generate content from Gemini API")
		return nil, wrapError(err)
	}

	resp := &model.Response{}
	if len(result.Candidates) > 0 {
		candidate := result.Candidates[0]
		resp.FinishReason = string(candidate.FinishReason)
		if candidate.Content != nil {
			var sb strings.Builder
			for _, part := range candidate.Content.Parts {
				// 跳过思考过程，只保留最终文本
				if part.Text != "" && !part.Thought {
					sb.WriteString(part.Text)
				}
			}
			resp.Text = sb.String()
		}
	}
	if result.UsageMetadata != nil {
		resp.Usage = model.Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}

	common.WithFields(map[string]interface{}{
		"model":         c.model,
		"finish_reason": resp.FinishReason,
		"output":        utils.TruncateForLog(resp.Text, 120),
	}).Debug("Gemini content generated")

	return resp, nil
}

// convertParts 将通用 Part 转换为 genai.Part
func convertParts(parts []model.Part) []*genai.Part {
	var result []*genai.Part
	for _, p := range parts {
		switch {
		case p.Media != nil:
			result = append(result, &genai.Part{
				InlineData: &genai.Blob{
					Data:     p.Media.Data,
					MIMEType: p.Media.MIMEType,
				},
			})
		case p.Text != "":
			result = append(result, &genai.Part{Text: p.Text})
		}
	}
	return result
}
