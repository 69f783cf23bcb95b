package gemini

import (
	"errors"

	"promptcraft/internal/genai/model"

	"google.golang.org/genai"
)

// wrapError 将 genai.APIError 包装为带状态码的 model.StatusError
// 非 API 错误（网络错误、context 取消等）原样返回
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	return &model.StatusError{
		Provider: ProviderName,
		Code:     apiErr.Code,
		Err:      err,
	}
}
