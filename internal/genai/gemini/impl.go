package gemini

import (
	"fmt"
	"time"

	"promptcraft/common"
)

// NewGeminiClientFromConfig 从配置创建 Gemini 客户端
func NewGeminiClientFromConfig(cfg *common.Config) (*Client, error) {
	client, err := NewClient(Config{
		APIKey:    cfg.GenAIAPIKey,
		BaseURL:   cfg.GenAIBaseURL,
		ModelName: cfg.GenAIModelName,
		Timeout:   time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
