package handler

import (
	"paybridge/internal/config"
	"paybridge/internal/metrics"

	"github.com/gin-gonic/gin"
)

// SetupRouter 配置路由
func SetupRouter(h *Handler, cfg *config.Config) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Init()

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware())

	// 支付网关回调
	r.POST("/webhook", h.Webhook)

	// API 路由组
	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.POST("/register", h.RegisterAccount)
		}

		tariff := api.Group("/tariff")
		{
			tariff.GET("/list", h.ListTariffs)
		}

		payment := api.Group("/payment")
		{
			payment.POST("/create", h.CreatePayment)
			payment.POST("/register", h.RegisterPayment)
			payment.GET("/detail", h.GetPayment)
			payment.GET("/list", h.ListPayments)
			payment.POST("/check", h.CheckPayment)
		}
	}

	// 健康检查
	r.GET("/health", Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}
