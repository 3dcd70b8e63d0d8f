package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/model"
	"paybridge/internal/repository"
	"paybridge/pkg/idgen"

	"gorm.io/gorm"
)

// PaymentGateway 支付网关能力，生产环境由 gateway.Client 实现
type PaymentGateway interface {
	FindPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
	CreatePayment(ctx context.Context, req *gateway.CreatePaymentRequest) (*gateway.Payment, error)
}

type PaymentService struct {
	cfg         *config.Config
	gateway     PaymentGateway
	tariffs     *TariffCatalog
	fulfiller   *FulfillService
	paymentRepo *repository.PaymentRepository
	accountRepo *repository.AccountRepository
}

func NewPaymentService(db *gorm.DB, gw PaymentGateway, tariffs *TariffCatalog, fulfiller *FulfillService, cfg *config.Config) *PaymentService {
	return &PaymentService{
		cfg:         cfg,
		gateway:     gw,
		tariffs:     tariffs,
		fulfiller:   fulfiller,
		paymentRepo: repository.NewPaymentRepository(db),
		accountRepo: repository.NewAccountRepository(db),
	}
}

type CreatePaymentResponse struct {
	PaymentID       string `json:"payment_id"`
	OrderNo         string `json:"order_no"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	ConfirmationURL string `json:"confirmation_url"`
}

// CreatePayment 在网关创建支付并落一条 pending 记录
func (s *PaymentService) CreatePayment(ctx context.Context, userID int64, tariffID string) (*CreatePaymentResponse, error) {
	tariff, ok := s.tariffs.Get(tariffID)
	if !ok {
		return nil, fmt.Errorf("%w: tariffID=%s", ErrUnknownTariff, tariffID)
	}
	if !tariff.Price.IsPositive() {
		return nil, fmt.Errorf("套餐价格未配置: tariffID=%s", tariffID)
	}

	if _, err := s.accountRepo.GetByUserID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("%w: userID=%d", ErrUnknownAccount, userID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	orderNo := idgen.GenerateOrderNo()
	payment, err := s.gateway.CreatePayment(ctx, &gateway.CreatePaymentRequest{
		Amount:  gateway.NewAmount(tariff.Price, tariff.Currency),
		Capture: true,
		Confirmation: gateway.Confirmation{
			Type:      "redirect",
			ReturnURL: s.cfg.Gateway.ReturnURL,
		},
		Description: fmt.Sprintf("Оплата тарифа %s (%s)", tariff.Name, orderNo),
		Metadata: map[string]string{
			"user_id":   strconv.FormatInt(userID, 10),
			"tariff_id": tariff.ID,
			"order_no":  orderNo,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("创建网关支付失败: %w", err)
	}

	record := &model.PaymentRecord{
		PaymentID: payment.ID,
		UserID:    userID,
		TariffID:  tariff.ID,
		Status:    model.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, nil, record); err != nil {
		// 网关侧已创建，本地落库失败会导致后续入账报 UnknownPayment
		log.Printf("[Payment] 网关支付已创建但本地记录写入失败，需要人工补录: paymentID=%s, userID=%d, tariffID=%s, err=%v",
			payment.ID, userID, tariff.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	log.Printf("[Payment] 创建支付: paymentID=%s, orderNo=%s, userID=%d, tariffID=%s", payment.ID, orderNo, userID, tariff.ID)

	resp := &CreatePaymentResponse{
		PaymentID: payment.ID,
		OrderNo:   orderNo,
		Status:    record.Status,
		Amount:    tariff.Price.StringFixed(2),
		Currency:  tariff.Currency,
	}
	if payment.Confirmation != nil {
		resp.ConfirmationURL = payment.Confirmation.ConfirmationURL
	}
	return resp, nil
}

// RegisterPayment 登记由机器人直接在网关创建的支付
func (s *PaymentService) RegisterPayment(ctx context.Context, paymentID string, userID int64, tariffID string) (*model.PaymentRecord, error) {
	if paymentID == "" {
		return nil, errors.New("payment_id 不能为空")
	}
	if _, ok := s.tariffs.Get(tariffID); !ok {
		return nil, fmt.Errorf("%w: tariffID=%s", ErrUnknownTariff, tariffID)
	}

	record := &model.PaymentRecord{
		PaymentID: paymentID,
		UserID:    userID,
		TariffID:  tariffID,
		Status:    model.PaymentStatusPending,
	}
	if err := s.paymentRepo.Create(ctx, nil, record); err != nil {
		if errors.Is(err, repository.ErrDuplicatePayment) {
			return s.paymentRepo.GetByPaymentID(ctx, paymentID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	record, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: paymentID=%s", ErrUnknownPayment, paymentID)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

// ListUserPayments 分页查询用户的支付记录，按创建时间倒序
func (s *PaymentService) ListUserPayments(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	records, total, err := s.paymentRepo.ListByUserID(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, total, nil
}

func (s *PaymentService) ListPending(ctx context.Context) ([]*model.PaymentRecord, error) {
	return s.paymentRepo.ListPending(ctx)
}

// CheckResult 一次网关查询 + 入账的结果
type CheckResult struct {
	PaymentID     string         `json:"payment_id"`
	GatewayStatus string         `json:"gateway_status"`
	Fulfill       *FulfillResult `json:"fulfill,omitempty"`
}

// CheckAndFulfill 向网关查询支付状态，成功则入账
// 网关超时返回 gateway.ErrGatewayTimeout，调用方应视为"尚未成功"
func (s *PaymentService) CheckAndFulfill(ctx context.Context, paymentID string) (*CheckResult, error) {
	payment, err := s.gateway.FindPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		PaymentID:     paymentID,
		GatewayStatus: payment.Status,
	}
	if !payment.Succeeded() {
		return result, nil
	}

	fulfilled, err := s.fulfiller.Fulfill(ctx, paymentID)
	if err != nil {
		return result, err
	}
	result.Fulfill = fulfilled
	return result, nil
}

// PendingAge 支付记录已等待的时长，用于对账日志
func PendingAge(record *model.PaymentRecord) time.Duration {
	return time.Since(record.CreatedAt).Truncate(time.Second)
}
