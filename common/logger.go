package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	loggerMu sync.RWMutex
	logger   = newLogger(logrus.InfoLevel, "text", os.Stdout)
)

// LogConfig 日志配置
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, stderr, file, discard
	FilePath string // Output 为 file 时的路径
}

// InitLogger 按配置替换全局日志实例，未知的级别按 info 处理
func InitLogger(cfg *LogConfig) error {
	output, err := openLogOutput(cfg.Output, cfg.FilePath)
	if err != nil {
		return err
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}

	loggerMu.Lock()
	logger = newLogger(level, cfg.Format, output)
	loggerMu.Unlock()
	return nil
}

func currentLogger() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func newLogger(level logrus.Level, format string, output io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetReportCaller(true)
	l.SetLevel(level)
	l.SetFormatter(newFormatter(format))
	l.SetOutput(output)
	return l
}

// openLogOutput file 模式下路径为空时退回 stdout
func openLogOutput(output, path string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	case "file":
		if path == "" {
			return os.Stdout, nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	default:
		return os.Stdout, nil
	}
}

// newFormatter 调用方只输出 "filename.go:line"
func newFormatter(format string) logrus.Formatter {
	caller := func(frame *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
	}

	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{
			TimestampFormat:  "2006-01-02 15:04:05",
			CallerPrettyfier: caller,
		}
	}
	return &logrus.TextFormatter{
		FullTimestamp:    true,
		TimestampFormat:  "2006-01-02 15:04:05",
		CallerPrettyfier: caller,
	}
}

func Debugf(format string, args ...interface{}) {
	currentLogger().Debugf(format, args...)
}

func Info(args ...interface{}) {
	currentLogger().Info(args...)
}

func Infof(format string, args ...interface{}) {
	currentLogger().Infof(format, args...)
}

func Warn(args ...interface{}) {
	currentLogger().Warn(args...)
}

// Fatalf 记录日志后退出进程
func Fatalf(format string, args ...interface{}) {
	currentLogger().Fatalf(format, args...)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return currentLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) *logrus.Entry {
	return currentLogger().WithFields(logrus.Fields(fields))
}

func WithError(err error) *logrus.Entry {
	return currentLogger().WithError(err)
}

// WithFlow 为某个 flow 的日志附加 flow 字段
func WithFlow(name string) *logrus.Entry {
	return currentLogger().WithField("flow", name)
}

// WithSession 为某个上传会话的日志附加 session 字段
func WithSession(sessionID string) *logrus.Entry {
	return currentLogger().WithField("session", sessionID)
}
