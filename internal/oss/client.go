package oss

import (
	"promptcraft/common"
)

// NewOSSClientFromConfig 从配置创建 OSS 客户端；未配置时返回 nil
func NewOSSClientFromConfig(cfg *common.Config) (OSSIface, error) {
	if !cfg.OSSEnabled() {
		return nil, nil
	}

	client, err := NewS3Client(S3Config{
		Endpoint:  cfg.OSSEndpoint,
		Region:    cfg.OSSRegion,
		AccessKey: cfg.OSSAccessKey,
		SecretKey: cfg.OSSSecretKey,
		PathStyle: cfg.OSSPathStyle,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
