package flow

import (
	"context"

	"promptcraft/internal/genai/model"
)

const (
	// ImagePromptFlowName 图片生成提示词的 flow 名称
	ImagePromptFlowName = "generatePromptFromImageFlow"
	// ImagePromptName 对应的 prompt 名称
	ImagePromptName = "generatePromptFromImagePrompt"
)

// imagePromptTemplate 发送给模型的指令
const imagePromptTemplate = `You are an AI that generates text prompts from images.  The prompt should describe the image in detail, including the composition, objects, and overall style.

Here is the image:

{{media .PhotoDataURI}}`

// ImagePromptInput flow 输入
type ImagePromptInput struct {
	PhotoDataURI string `json:"photoDataUri" validate:"required,base64datauri" jsonschema_description:"A photo, as a data URI that must include a MIME type and use Base64 encoding. Expected format: 'data:<mimetype>;base64,<encoded_data>'."`
}

// ImagePromptOutput flow 输出
type ImagePromptOutput struct {
	Prompt string `json:"prompt" jsonschema_description:"A text prompt that describes the image."`
}

// ImagePromptFlow 图片生成提示词
type ImagePromptFlow = Flow[ImagePromptInput, ImagePromptOutput]

// NewImagePromptFlow 使用给定的模型客户端构建 generatePromptFromImageFlow
func NewImagePromptFlow(client model.Client) (*ImagePromptFlow, error) {
	prompt, err := DefinePrompt[ImagePromptInput, ImagePromptOutput](client, ImagePromptName, imagePromptTemplate)
	if err != nil {
		return nil, err
	}

	return Define(ImagePromptFlowName, func(ctx context.Context, in ImagePromptInput) (*ImagePromptOutput, error) {
		return prompt.Generate(ctx, in)
	}), nil
}
