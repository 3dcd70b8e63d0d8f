package handler

import (
	"errors"
	"strconv"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/infrastructure/cache"
	"paybridge/internal/infrastructure/lock"
	"paybridge/internal/service"
	"paybridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	cfg            *config.Config
	tariffs        *service.TariffCatalog
	accountService *service.AccountService
	paymentService *service.PaymentService
	fulfillService *service.FulfillService
	authFailures   *cache.AuthFailureTracker
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, gw service.PaymentGateway, cfg *config.Config) *Handler {
	tariffs := service.NewTariffCatalog(cfg.Tariffs)
	fulfiller := service.NewFulfillService(db, lock.NewLocker(rdb, cfg.Business.LockTTL), tariffs, cfg)
	return &Handler{
		cfg:            cfg,
		tariffs:        tariffs,
		accountService: service.NewAccountService(db, cfg),
		paymentService: service.NewPaymentService(db, gw, tariffs, fulfiller, cfg),
		fulfillService: fulfiller,
		authFailures:   cache.NewAuthFailureTracker(rdb, authFailWindow, cfg.Webhook.AuthFailThreshold),
	}
}

// PaymentService 供后台对账任务复用同一套依赖
func (h *Handler) PaymentService() *service.PaymentService {
	return h.paymentService
}

// writeError 把服务层错误映射为业务错误码
func writeError(c *gin.Context, err error) {
	var apiErr *gateway.APIError
	switch {
	case errors.Is(err, service.ErrUnknownPayment):
		response.BusinessError(c, response.CodeUnknownPayment, err.Error())
	case errors.Is(err, service.ErrUnknownTariff):
		response.BusinessError(c, response.CodeUnknownTariff, err.Error())
	case errors.Is(err, service.ErrUnknownAccount):
		response.BusinessError(c, response.CodeUnknownAccount, err.Error())
	case errors.Is(err, gateway.ErrGatewayTimeout):
		response.BusinessError(c, response.CodeGatewayTimeout, err.Error())
	case errors.Is(err, gateway.ErrPaymentNotFound), errors.As(err, &apiErr):
		response.BusinessError(c, response.CodeGatewayError, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		response.BusinessError(c, response.CodeStoreUnavailable, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询用户余额
// GET /api/v1/account/balance?user_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":         account.UserID,
		"balance":         account.Balance,
		"premium_balance": account.PremiumBalance,
		"image_balance":   account.ImageBalance,
	})
}

type RegisterAccountRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// RegisterAccount 用户首次交互时开户
// POST /api/v1/account/register
func (h *Handler) RegisterAccount(c *gin.Context) {
	var req RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, account)
}

// ============================================================
// 套餐相关接口
// ============================================================

// ListTariffs 套餐列表
// GET /api/v1/tariff/list
func (h *Handler) ListTariffs(c *gin.Context) {
	response.Success(c, gin.H{
		"list": h.tariffs.List(),
	})
}

// ============================================================
// 支付相关接口
// ============================================================

type CreatePaymentRequest struct {
	UserID   int64  `json:"user_id" binding:"required,gt=0"`
	TariffID string `json:"tariff_id" binding:"required"`
}

// CreatePayment 为用户购买套餐创建网关支付，返回跳转链接
// POST /api/v1/payment/create
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), req.UserID, req.TariffID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}

type RegisterPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
	UserID    int64  `json:"user_id" binding:"required,gt=0"`
	TariffID  string `json:"tariff_id" binding:"required"`
}

// RegisterPayment 登记机器人已在网关侧创建的支付
// POST /api/v1/payment/register
func (h *Handler) RegisterPayment(c *gin.Context) {
	var req RegisterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	record, err := h.paymentService.RegisterPayment(c.Request.Context(), req.PaymentID, req.UserID, req.TariffID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, record)
}

// GetPayment 查询支付记录
// GET /api/v1/payment/detail?payment_id=xxx
func (h *Handler) GetPayment(c *gin.Context) {
	paymentID := c.Query("payment_id")
	if paymentID == "" {
		response.ParamError(c, "payment_id 参数不能为空")
		return
	}

	record, err := h.paymentService.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, record)
}

// ListPayments 查询用户支付列表
// GET /api/v1/payment/list?user_id=xxx&page=1&page_size=10
func (h *Handler) ListPayments(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "user_id 参数错误")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	records, total, err := h.paymentService.ListUserPayments(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":  records,
		"total": total,
		"page":  page,
	})
}

type CheckPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// CheckPayment 运维手动触发：向网关查询单笔支付，成功则入账
// POST /api/v1/payment/check
func (h *Handler) CheckPayment(c *gin.Context) {
	var req CheckPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if _, err := h.paymentService.GetPayment(c.Request.Context(), req.PaymentID); err != nil {
		writeError(c, err)
		return
	}

	result, err := h.paymentService.CheckAndFulfill(c.Request.Context(), req.PaymentID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, result)
}
