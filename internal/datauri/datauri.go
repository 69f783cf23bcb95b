package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmpty 输入为空
	ErrEmpty = errors.New("data uri is empty")
	// ErrMalformed 输入不符合 data:<mime>;base64,<payload> 格式
	ErrMalformed = errors.New("malformed data uri")
)

// DataURI 解析后的 data URI，仅支持 base64 编码
type DataURI struct {
	MIMEType string
	Data     []byte
}

// Parse 解析 data:<mime>;base64,<payload> 格式的字符串
func Parse(s string) (*DataURI, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	if !strings.HasPrefix(s, "data:") {
		return nil, fmt.Errorf("%w: missing data: scheme", ErrMalformed)
	}

	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrMalformed)
	}

	mimeType, params, _ := strings.Cut(header, ";")
	if mimeType == "" || !strings.Contains(mimeType, "/") {
		return nil, fmt.Errorf("%w: missing mime type", ErrMalformed)
	}
	if !hasBase64Param(params) {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformed)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &DataURI{
		MIMEType: strings.ToLower(mimeType),
		Data:     data,
	}, nil
}

// hasBase64Param 判断 ";charset=...;base64" 之类的参数串中是否声明了 base64
func hasBase64Param(params string) bool {
	for _, p := range strings.Split(params, ";") {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			return true
		}
	}
	return false
}

// Encode 将原始数据编码为 data URI
func Encode(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// String 返回编码后的 data URI
func (d *DataURI) String() string {
	return Encode(d.MIMEType, d.Data)
}

// Base64 返回 payload 的 base64 文本（不含头部）
func (d *DataURI) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Data)
}

// Size 返回解码后的字节数
func (d *DataURI) Size() int {
	return len(d.Data)
}
