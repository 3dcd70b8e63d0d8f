package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/infrastructure/lock"
	"paybridge/internal/model"
	"paybridge/internal/repository"
	"paybridge/pkg/idgen"

	"gorm.io/gorm"
)

const (
	ResultCredited        = "credited"
	ResultAlreadyCredited = "already_credited"
)

const topupNoticeText = "✅ Оплата прошла успешно! Баланс пополнен по тарифу %s"

type FulfillService struct {
	db          *gorm.DB
	cfg         *config.Config
	locker      *lock.Locker
	tariffs     *TariffCatalog
	paymentRepo *repository.PaymentRepository
	accountRepo *repository.AccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewFulfillService(db *gorm.DB, locker *lock.Locker, tariffs *TariffCatalog, cfg *config.Config) *FulfillService {
	return &FulfillService{
		db:          db,
		cfg:         cfg,
		locker:      locker,
		tariffs:     tariffs,
		paymentRepo: repository.NewPaymentRepository(db),
		accountRepo: repository.NewAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

type FulfillResult struct {
	PaymentID      string `json:"payment_id"`
	Status         string `json:"status"`
	UserID         int64  `json:"user_id"`
	TariffID       string `json:"tariff_id"`
	PremiumTokens  int64  `json:"premium_tokens"`
	Images         int64  `json:"images"`
	PremiumBalance int64  `json:"premium_balance,omitempty"`
	ImageBalance   int64  `json:"image_balance,omitempty"`
}

func alreadyCredited(record *model.PaymentRecord) *FulfillResult {
	return &FulfillResult{
		PaymentID: record.PaymentID,
		Status:    ResultAlreadyCredited,
		UserID:    record.UserID,
		TariffID:  record.TariffID,
	}
}

// Fulfill 将一笔已确认成功的支付转换为账户额度，同一 payment_id 只会入账一次
//
// 调用方（webhook 或对账任务）需要先确认网关侧支付已成功。
// 入账、标记完成、写入到账通知在同一个事务内完成；通知由 OutboxSender 异步投递，
// 投递失败不会回滚入账。
func (s *FulfillService) Fulfill(ctx context.Context, paymentID string) (*FulfillResult, error) {
	record, err := s.paymentRepo.GetByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Printf("[Fulfill] 本地不存在该支付记录，需要人工核对: paymentID=%s", paymentID)
			return nil, fmt.Errorf("%w: paymentID=%s", ErrUnknownPayment, paymentID)
		}
		return nil, fmt.Errorf("%w: 查询支付记录失败: %v", ErrStoreUnavailable, err)
	}

	// 快速路径：已完成直接返回，不加锁
	if record.IsCompleted() {
		return alreadyCredited(record), nil
	}

	tariff, ok := s.tariffs.Get(record.TariffID)
	if !ok {
		log.Printf("[Fulfill] 套餐不存在，支付保持 pending: paymentID=%s, tariffID=%s", paymentID, record.TariffID)
		return nil, fmt.Errorf("%w: paymentID=%s, tariffID=%s", ErrUnknownTariff, paymentID, record.TariffID)
	}

	fulfillLock := s.locker.NewFulfillLock(paymentID)
	if err := fulfillLock.Lock(ctx, 100*time.Millisecond, 50); err != nil {
		return nil, fmt.Errorf("系统繁忙，获取入账锁失败: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := fulfillLock.Unlock(unlockCtx); err != nil {
			log.Printf("[Fulfill] 释放入账锁失败: key=%s, err=%v", fulfillLock.Key(), err)
		}
	}()

	var result *FulfillResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 持锁后在事务内再次检查状态
		current, err := s.paymentRepo.GetByPaymentIDForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if current.IsCompleted() {
			result = alreadyCredited(current)
			return nil
		}

		account, err := s.accountRepo.Update(ctx, tx, current.UserID, func(a *model.Account) error {
			a.PremiumBalance += tariff.PremiumTokens
			a.ImageBalance += tariff.Images
			return nil
		})
		if err != nil {
			return err
		}

		if err := s.paymentRepo.MarkCompleted(ctx, tx, paymentID); err != nil {
			return err
		}

		if err := s.enqueueNotice(ctx, tx, current, tariff); err != nil {
			return fmt.Errorf("写入到账通知失败: %w", err)
		}

		result = &FulfillResult{
			PaymentID:      paymentID,
			Status:         ResultCredited,
			UserID:         current.UserID,
			TariffID:       tariff.ID,
			PremiumTokens:  tariff.PremiumTokens,
			Images:         tariff.Images,
			PremiumBalance: account.PremiumBalance,
			ImageBalance:   account.ImageBalance,
		}
		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountNotFound):
			log.Printf("[Fulfill] 用户账户不存在，支付保持 pending: paymentID=%s, userID=%d", paymentID, record.UserID)
			return nil, fmt.Errorf("%w: paymentID=%s, userID=%d", ErrUnknownAccount, paymentID, record.UserID)
		case errors.Is(err, repository.ErrPaymentNotFound):
			return nil, fmt.Errorf("%w: paymentID=%s", ErrUnknownPayment, paymentID)
		default:
			log.Printf("[Fulfill] 入账事务失败，已回滚: paymentID=%s, err=%v", paymentID, err)
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	if result.Status == ResultCredited {
		log.Printf("[Fulfill] 充值到账: paymentID=%s, userID=%d, tariff=%s, premium=+%d, images=+%d",
			paymentID, result.UserID, result.TariffID, result.PremiumTokens, result.Images)
	}
	return result, nil
}

func (s *FulfillService) enqueueNotice(ctx context.Context, tx *gorm.DB, record *model.PaymentRecord, tariff *model.Tariff) error {
	notice := model.TopupNotice{
		NoticeNo:      idgen.GenerateNoticeNo(),
		PaymentID:     record.PaymentID,
		UserID:        record.UserID,
		TariffID:      tariff.ID,
		TariffName:    tariff.Name,
		PremiumTokens: tariff.PremiumTokens,
		Images:        tariff.Images,
		Text:          fmt.Sprintf(topupNoticeText, tariff.Name),
		CreditedAt:    time.Now(),
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: record.PaymentID,
		Topic:      s.cfg.Kafka.Topic.TopupNotice,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}
