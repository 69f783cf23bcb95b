package uploads

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultAllowedTypes 默认允许的图片类型
var DefaultAllowedTypes = []string{"image/png", "image/jpeg", "image/webp"}

// File 用户选择的一个文件
type File struct {
	Name string
	// Type 浏览器声明的 MIME 类型，可以为空
	Type string
	Data []byte
}

// Rejection 被拒绝的文件及原因
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// detectMIMEType 优先使用声明的类型，缺失时按内容识别
func detectMIMEType(f File) string {
	declared := normalizeMIMEType(f.Type)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return normalizeMIMEType(mimetype.Detect(f.Data).String())
}

func normalizeMIMEType(s string) string {
	s, _, _ = strings.Cut(s, ";")
	return strings.ToLower(strings.TrimSpace(s))
}

// check 先校验类型再校验大小，返回 nil 表示接受
func (c *Controller) check(f File, mimeType string) *Rejection {
	if !strings.HasPrefix(mimeType, "image/") || !c.allowed[mimeType] {
		return &Rejection{Name: f.Name, Reason: fmt.Sprintf("%q is not a valid image file.", f.Name)}
	}
	if int64(len(f.Data)) > c.maxBytes {
		return &Rejection{Name: f.Name, Reason: fmt.Sprintf("%q exceeds the %s size limit.", f.Name, formatBytes(c.maxBytes))}
	}
	return nil
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%d MB", n/mb)
	}
	if n%1024 == 0 {
		return fmt.Sprintf("%d KB", n/1024)
	}
	return fmt.Sprintf("%d bytes", n)
}
