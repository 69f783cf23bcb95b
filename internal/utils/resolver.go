package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"promptcraft/internal/datauri"
	"promptcraft/internal/oss"
)

// ErrUnsupportedImageRef 不支持的图片引用格式
var ErrUnsupportedImageRef = errors.New("unsupported image reference")

// ImageResolver 将 data URI / http(s) URL / s3://bucket/key 统一解析为 data URI
type ImageResolver struct {
	// OSS 为 nil 时不支持 s3:// 引用
	OSS      oss.OSSIface
	MaxBytes int64
}

// Resolve 解析图片引用；data URI 原样返回，由下游校验格式
func (r *ImageResolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", nil
	case strings.HasPrefix(ref, "data:"):
		return ref, nil
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		data, mimeType, err := DownloadImageFromURL(ctx, ref, r.MaxBytes)
		if err != nil {
			return "", fmt.Errorf("failed to download image: %w", err)
		}
		return datauri.Encode(mimeType, data), nil
	case strings.HasPrefix(ref, "s3://"):
		return r.resolveS3(ctx, ref)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImageRef, TruncateForLog(ref, 32))
	}
}

func (r *ImageResolver) resolveS3(ctx context.Context, ref string) (string, error) {
	if r.OSS == nil {
		return "", fmt.Errorf("%w: s3 references require OSS configuration", ErrUnsupportedImageRef)
	}

	bucket, key, ok := ParseS3Ref(ref)
	if !ok {
		return "", fmt.Errorf("%w: expected s3://bucket/key", ErrUnsupportedImageRef)
	}

	data, mimeType, err := r.OSS.GetObject(ctx, bucket, key, r.MaxBytes)
	if err != nil {
		return "", err
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = InferMimeTypeFromURL(key)
	}
	return datauri.Encode(mimeType, data), nil
}

// ParseS3Ref 解析 s3://bucket/key
func ParseS3Ref(ref string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(ref, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
