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

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/handler"
	"paybridge/internal/infrastructure/cache"
	"paybridge/internal/infrastructure/database"
	"paybridge/internal/infrastructure/mq"
	"paybridge/internal/job"
	"paybridge/pkg/idgen"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server and background jobs",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// 缺少 webhook 密钥或网关凭证时直接退出
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := idgen.Init(1); err != nil {
		return err
	}

	db := database.InitDatabase(cfg)
	redisClient := cache.InitRedis(&cfg.Redis)
	defer redisClient.Close()

	producer := mq.InitKafka(&cfg.Kafka)
	defer producer.Close()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := handler.NewHandler(db, redisClient, gateway.NewClient(&cfg.Gateway), cfg)

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, producer, cfg)
	go outboxSender.Start(ctx)

	reconcileJob := job.NewReconcileJob(h.PaymentService(), cfg.Reconcile.Interval)
	reconcileDone := make(chan struct{})
	go func() {
		defer close(reconcileDone)
		reconcileJob.Start(ctx)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.SetupRouter(h, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	// 先停 HTTP 再停后台任务，进行中的对账会被取消，剩余支付留待下次启动
	cancel()
	<-reconcileDone

	log.Println("服务已关闭")
	return nil
}
