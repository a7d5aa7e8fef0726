package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cohort2sql-go/internal/app"
	"cohort2sql-go/internal/config"
)

func main() {
	// 加载配置
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting Cohort2SQL Server",
		zap.String("version", config.Version),
		zap.String("git_commit", config.GitCommit),
		zap.String("go_version", runtime.Version()))
	cfg.AI.LogConfig(logger)

	// 组装数据库、缓存、补全服务和会话注册表
	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	application.Start()

	if err := application.DB.HealthCheck(context.Background()); err != nil {
		logger.Fatal("Database health check failed", zap.Error(err))
	}
	logger.Info("Database connection established successfully")

	srv := application.HTTPServer()

	// 启动服务器
	go func() {
		logger.Info("Cohort2SQL server starting",
			zap.String("addr", srv.Addr),
			zap.String("mode", gin.Mode()))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 关闭HTTP服务器，等待进行中的提问结束
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("Server gracefully stopped")
	}

	// 归还所有会话连接
	application.Close()
	logger.Info("Cohort2SQL server exited")
}
