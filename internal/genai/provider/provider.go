package provider

import (
	"fmt"

	"promptcraft/common"
	"promptcraft/internal/genai/anthropic"
	"promptcraft/internal/genai/gemini"
	"promptcraft/internal/genai/model"
	"promptcraft/internal/genai/openai"
)

// NewClientFromConfig 根据 GENAI_PROVIDER 创建对应的模型客户端
func NewClientFromConfig(cfg *common.Config) (model.Client, error) {
	var (
		client model.Client
		err    error
	)
	// 不返回持有 nil 指针的接口
	switch cfg.GenAIProvider {
	case gemini.ProviderName:
		var c *gemini.Client
		if c, err = gemini.NewGeminiClientFromConfig(cfg); err == nil {
			client = c
		}
	case openai.ProviderName:
		var c *openai.Client
		if c, err = openai.NewOpenAIClientFromConfig(cfg); err == nil {
			client = c
		}
	case anthropic.ProviderName:
		var c *anthropic.Client
		if c, err = anthropic.NewAnthropicClientFromConfig(cfg); err == nil {
			client = c
		}
	default:
		return nil, fmt.Errorf("unsupported GENAI_PROVIDER: %s", cfg.GenAIProvider)
	}
	if err != nil {
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"provider": client.Name(),
		"model":    cfg.GenAIModelName,
	}).Info("GenAI client created")
	return client, nil
}
