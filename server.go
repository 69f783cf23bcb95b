package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"promptcraft/common"
	"promptcraft/internal/action"
	"promptcraft/internal/flow"
	"promptcraft/internal/genai/provider"
	"promptcraft/internal/httpapi"
	"promptcraft/internal/oss"
	"promptcraft/internal/tools"
	"promptcraft/internal/utils"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	// 加载配置
	config, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 打印配置信息（隐藏敏感信息）
	common.WithFields(map[string]interface{}{
		"mode":     config.ServerMode,
		"provider": config.GenAIProvider,
		"model":    config.GenAIModelName,
		"base_url": config.GenAIBaseURL,
		"api_key":  maskAPIKey(config.GenAIAPIKey),
	}).Info("Server starting...")

	// 创建模型客户端
	client, err := provider.NewClientFromConfig(config)
	if err != nil {
		common.Fatalf("Failed to create GenAI client: %v", err)
	}
	defer client.Close()

	imageFlow, err := flow.NewImagePromptFlow(client)
	if err != nil {
		common.Fatalf("Failed to define flow: %v", err)
	}
	submitter := action.New(imageFlow)

	switch config.ServerMode {
	case "stdio":
		err = serveStdio(config, submitter)
	default:
		err = serveHTTP(config, submitter, imageFlow)
	}
	if err != nil {
		common.Fatalf("Server error: %v", err)
	}
}

// serveStdio 以 MCP stdio 方式运行
func serveStdio(config *common.Config, submitter action.Submitter) error {
	ossClient, err := oss.NewOSSClientFromConfig(config)
	if err != nil {
		return fmt.Errorf("failed to create OSS client: %w", err)
	}
	resolver := &utils.ImageResolver{OSS: ossClient, MaxBytes: config.UploadMaxBytes}

	// 创建 MCP 服务器
	s := server.NewMCPServer(
		"PromptCraft MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterPromptTools(s, submitter, resolver); err != nil {
		return fmt.Errorf("failed to register prompt tools: %w", err)
	}

	// 启动 stdio 服务器
	return server.ServeStdio(s)
}

// serveHTTP 运行 HTTP 服务，收到信号后等待进行中的请求结束再退出
func serveHTTP(config *common.Config, submitter action.Submitter, imageFlow *flow.ImagePromptFlow) error {
	api := httpapi.NewServer(httpapi.Options{
		Submitter:    submitter,
		Flow:         imageFlow,
		MaxBytes:     config.UploadMaxBytes,
		AllowedTypes: config.UploadAllowedTypes,
		SessionIdle:  time.Duration(config.SessionIdleMinutes) * time.Minute,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go api.Sessions().Run(ctx)

	srv := &http.Server{
		Addr:              config.GetServerAddr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		common.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	common.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.WithError(err).Warn("HTTP server shutdown error")
	}
	api.Sessions().Close()
	return nil
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
