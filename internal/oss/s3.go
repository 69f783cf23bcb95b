package oss

import (
	"context"
	"fmt"
	"io"
	"strings"

	"promptcraft/common"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client S3 兼容的 OSS 客户端实现
type S3Client struct {
	client *s3.Client
}

// S3Config S3 客户端配置
type S3Config struct {
	Endpoint  string // OSS 服务端点，例如：s3.amazonaws.com 或 oss-cn-hangzhou.aliyuncs.com
	Region    string // 区域，例如：us-east-1 或 cn-hangzhou
	AccessKey string // Access Key ID
	SecretKey string // Secret Access Key
	// PathStyle 使用 path-style 寻址（MinIO 等自建存储通常需要）
	PathStyle bool
}

// NewS3Client 创建新的 S3 客户端
func NewS3Client(cfg S3Config) (*S3Client, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// 自定义端点用于兼容其他 S3 协议的对象存储
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.Contains(endpoint, "://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &S3Client{client: client}, nil
}

// GetObject 读取对象内容
func (c *S3Client) GetObject(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, string, error) {
	common.WithFields(map[string]interface{}{
		"bucket": bucket,
		"key":    key,
	}).Debug("Reading object from OSS")

	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"bucket": bucket,
			"key":    key,
		}).Error("Failed to get object from OSS")
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	if maxBytes > 0 && aws.ToInt64(out.ContentLength) > maxBytes {
		return nil, "", fmt.Errorf("object %s/%s exceeds %d bytes", bucket, key, maxBytes)
	}

	var body io.Reader = out.Body
	if maxBytes > 0 {
		body = io.LimitReader(out.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read object body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", fmt.Errorf("object %s/%s exceeds %d bytes", bucket, key, maxBytes)
	}

	common.WithFields(map[string]interface{}{
		"bucket":       bucket,
		"key":          key,
		"content_type": aws.ToString(out.ContentType),
		"size":         len(data),
	}).Debug("Object read from OSS")

	return data, aws.ToString(out.ContentType), nil
}
