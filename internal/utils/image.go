package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
// maxBytes > 0 时超过该大小直接报错，避免把超大文件读入内存
func DownloadImageFromURL(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	imageData, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(imageData)) > maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxBytes)
	}

	// 获取 Content-Type，去掉 charset 等参数
	mimeType, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = InferMimeTypeFromURL(url)
	}

	return imageData, mimeType, nil
}

// InferMimeTypeFromURL 从 URL 推断 MIME 类型（不区分大小写）
func InferMimeTypeFromURL(url string) string {
	// 去掉查询参数再看扩展名
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	}
	// 默认返回 jpeg
	return "image/jpeg"
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
