package oss

import (
	"context"
)

// OSSIface 只读的对象存储客户端接口，用于解析 s3:// 图片引用
type OSSIface interface {
	// GetObject 读取对象内容，返回数据与 Content-Type
	// maxBytes > 0 时对象超过该大小直接报错
	GetObject(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, string, error)
}
