package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// 默认的单张图片大小上限（4MB，与 Gemini 内联数据限制一致）
const DefaultUploadMaxBytes = 4 * 1024 * 1024

// 各提供方的默认模型
var defaultModelNames = map[string]string{
	"gemini":    "gemini-2.0-flash",
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-sonnet-4-5",
}

// Config 应用配置结构
type Config struct {
	// GenAI 提供方: gemini、openai 或 anthropic
	GenAIProvider string

	GenAIBaseURL   string
	GenAIAPIKey    string
	GenAIModelName string
	// Anthropic 需要显式的最大输出 token 数
	GenAIMaxTokens int
	// GenAI 请求超时时间（秒），0 表示不在业务层设置超时，沿用底层传输的行为
	GenAITimeoutSeconds int

	// 运行模式: http 或 stdio（MCP）
	ServerMode    string
	ServerAddress string
	ServerPort    string

	// 上传限制
	UploadMaxBytes     int64
	UploadAllowedTypes []string
	// 会话空闲多久后被回收（分钟）
	SessionIdleMinutes int

	// OSS 配置（仅用于读取 s3:// 图片引用）
	OSSEndpoint  string
	OSSRegion    string
	OSSAccessKey string
	OSSSecretKey string
	OSSPathStyle bool

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件加载配置
func LoadConfig() (*Config, error) {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		// stdio 模式下 stdout 属于 MCP 协议，提示信息只能写到 stderr
		fmt.Fprintln(os.Stderr, "Warning: .env file not found, using environment variables")
	}

	config := &Config{
		GenAIProvider:       strings.ToLower(getEnv("GENAI_PROVIDER", "gemini")),
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:         getEnv("GENAI_API_KEY", ""),
		GenAIModelName:      getEnv("GENAI_MODEL_NAME", ""),
		GenAIMaxTokens:      getEnvInt("GENAI_MAX_TOKENS", 1024),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 0),
		ServerMode:          strings.ToLower(getEnv("SERVER_MODE", "http")),
		ServerAddress:       getEnv("SERVER_ADDRESS", "0.0.0.0"),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		UploadMaxBytes:      int64(getEnvInt("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes)),
		UploadAllowedTypes:  getEnvList("UPLOAD_ALLOWED_TYPES", []string{"image/png", "image/jpeg", "image/webp"}),
		SessionIdleMinutes:  getEnvInt("SESSION_IDLE_MINUTES", 60),
		// OSS 配置
		OSSEndpoint:  getEnv("OSS_ENDPOINT", ""),
		OSSRegion:    getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey: getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey: getEnv("OSS_SECRET_KEY", ""),
		OSSPathStyle: getEnvBool("OSS_PATH_STYLE", false),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stdout"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	// stdio 模式下 stdout 被 MCP 占用，日志强制写到 stderr
	if config.ServerMode == "stdio" && strings.EqualFold(config.LogOutput, "stdout") {
		config.LogOutput = "stderr"
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// validate 校验必需的配置并补齐默认模型
func (c *Config) validate() error {
	defaultModel, ok := defaultModelNames[c.GenAIProvider]
	if !ok {
		return fmt.Errorf("unsupported GENAI_PROVIDER: %s", c.GenAIProvider)
	}
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY is required when GENAI_PROVIDER=%s", c.GenAIProvider)
	}
	if c.GenAIModelName == "" {
		c.GenAIModelName = defaultModel
	}

	switch c.ServerMode {
	case "http", "stdio":
	default:
		return fmt.Errorf("unsupported SERVER_MODE: %s", c.ServerMode)
	}

	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", c.UploadMaxBytes)
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// getEnvBool 获取布尔类型的环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvList 获取逗号分隔的列表环境变量
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(strings.ToLower(item)); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetServerAddr 返回完整的服务器地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.ServerAddress, c.ServerPort)
}

// OSSEnabled 是否配置了 S3 兼容存储（用于 s3:// 图片引用）
func (c *Config) OSSEnabled() bool {
	return c.OSSAccessKey != "" && c.OSSSecretKey != ""
}
