package tools

import (
	"context"
	"fmt"

	"promptcraft/common"
	"promptcraft/internal/action"
	"promptcraft/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ImageResolver 将图片引用解析为 data URI
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// RegisterPromptTools 注册图片生成提示词的 MCP tool
func RegisterPromptTools(s *server.MCPServer, submitter action.Submitter, resolver ImageResolver) error {
	generatePromptTool := mcp.NewTool(
		"generate_prompt_from_image",
		mcp.WithDescription("Generate a detailed text prompt describing an image, including its composition, objects, and overall style. Accepts a data URI, an http(s) URL, or an s3://bucket/key reference."),
		mcp.WithString("image",
			mcp.Required(),
			mcp.Description("Image as a data URI (data:<mimetype>;base64,<encoded_data>), an http(s) URL, or s3://bucket/key"),
		),
	)

	s.AddTool(generatePromptTool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// 获取参数
		image, err := req.RequireString("image")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image parameter is required: %v", err)), nil
		}

		// 统一转换为 data URI
		dataURI, err := resolver.Resolve(ctx, image)
		if err != nil {
			common.WithError(err).WithField("image", utils.TruncateForLog(image, 64)).Warn("Failed to resolve image reference")
			return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
		}

		result := submitter.Submit(ctx, dataURI)
		if !result.OK() {
			return mcp.NewToolResultError(result.Error), nil
		}
		return mcp.NewToolResultText(result.Prompt), nil
	})

	return nil
}
