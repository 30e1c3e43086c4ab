package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petmaster/internal/config"
	"petmaster/internal/gateway"
	"petmaster/internal/handler"
	"petmaster/internal/infrastructure/cache"
	"petmaster/internal/infrastructure/database"
	"petmaster/internal/infrastructure/mq"
	"petmaster/internal/job"
	"petmaster/internal/logger"
	"petmaster/pkg/idgen"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zlog, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Sync()

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)

	// 初始化 Kafka
	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	// 初始化支付宝网关
	gw, err := gateway.NewAlipayGateway(&cfg.Alipay, zlog)
	if err != nil {
		zlog.Fatal("初始化支付宝网关失败", zap.Error(err))
	}

	// 初始化异步通知验签器
	verifier, err := gateway.NewNotifyVerifier(cfg.Alipay.AlipayPublicKey)
	if err != nil {
		zlog.Fatal("初始化验签器失败", zap.Error(err))
	}

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, cfg, zlog)
	go outboxSender.Start(ctx)

	orderTimeoutJob := job.NewOrderTimeoutJob(db, cfg, zlog)
	go orderTimeoutJob.Start(ctx)

	// 设置路由
	router := handler.SetupRouter(db, redisClient, cfg, gw, verifier, zlog)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// 在 goroutine 中启动服务器
	go func() {
		zlog.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("服务关闭异常", zap.Error(err))
	}

	zlog.Info("服务已关闭")
}
