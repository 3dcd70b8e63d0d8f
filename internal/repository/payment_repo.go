package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paybridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrPaymentNotFound      = errors.New("支付记录不存在")
	ErrPaymentStatusInvalid = errors.New("支付记录状态不合法")
	ErrDuplicatePayment     = errors.New("支付记录已存在")
	ErrStoreCorrupt         = errors.New("支付记录存储已损坏")
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, record *model.PaymentRecord) error {
	if tx == nil {
		tx = r.db
	}
	if record.Status == "" {
		record.Status = model.PaymentStatusPending
	}
	if !model.IsKnownPaymentStatus(record.Status) {
		return ErrPaymentStatusInvalid
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (r *PaymentRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetByPaymentIDForUpdate 在事务内加行锁读取，用于入账前的二次状态校验
func (r *PaymentRepository) GetByPaymentIDForUpdate(ctx context.Context, tx *gorm.DB, paymentID string) (*model.PaymentRecord, error) {
	var record model.PaymentRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payment_id = ?", paymentID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &record, nil
}

// MarkCompleted 条件更新 pending -> completed，影响行数为0说明已被其他流程完成
func (r *PaymentRepository) MarkCompleted(ctx context.Context, tx *gorm.DB, paymentID string) error {
	if tx == nil {
		tx = r.db
	}

	now := time.Now()
	result := tx.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("payment_id = ? AND status = ?", paymentID, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":       model.PaymentStatusCompleted,
			"completed_at": &now,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentStatusInvalid
	}
	return nil
}

// ListPending 按创建时间升序返回所有待确认的支付记录
func (r *PaymentRepository) ListPending(ctx context.Context) ([]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", model.PaymentStatusPending).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}

func (r *PaymentRepository) ListByUserID(ctx context.Context, userID int64, page, pageSize int) ([]*model.PaymentRecord, int64, error) {
	var records []*model.PaymentRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PaymentRecord{}).Where("user_id = ?", userID)

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error

	return records, total, err
}

// Load 读取全部支付记录：payment_id -> 记录
// 没有任何记录时返回空 map；出现未知状态说明存储被破坏
func (r *PaymentRepository) Load(ctx context.Context) (map[string]*model.PaymentRecord, error) {
	var records []*model.PaymentRecord
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&records).Error; err != nil {
		return nil, err
	}

	all := make(map[string]*model.PaymentRecord, len(records))
	for _, rec := range records {
		if rec.PaymentID == "" || !model.IsKnownPaymentStatus(rec.Status) {
			return nil, fmt.Errorf("%w: payment_id=%q status=%q", ErrStoreCorrupt, rec.PaymentID, rec.Status)
		}
		all[rec.PaymentID] = rec
	}
	return all, nil
}

// Save 在一个事务内持久化完整映射：逐条 upsert，任何一条失败整体回滚
// 支付记录是审计留痕，映射里没有的记录保留不删；completed 不会被改回 pending
func (r *PaymentRepository) Save(ctx context.Context, all map[string]*model.PaymentRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, rec := range all {
			if id == "" || rec == nil || !model.IsKnownPaymentStatus(rec.Status) {
				return fmt.Errorf("%w: payment_id=%q", ErrPaymentStatusInvalid, id)
			}
		}

		for id, rec := range all {
			var existing model.PaymentRecord
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("payment_id = ?", id).
				First(&existing).Error

			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := *rec
				row.ID = 0
				row.PaymentID = id
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				// 只接受合法的状态迁移，completed -> pending 保持原状态
				status := rec.Status
				if status != existing.Status && !model.CanTransitionTo(existing.Status, status) {
					status = existing.Status
				}
				updates := map[string]interface{}{
					"user_id":   rec.UserID,
					"tariff_id": rec.TariffID,
					"status":    status,
				}
				if status == model.PaymentStatusCompleted && existing.CompletedAt == nil {
					completedAt := rec.CompletedAt
					if completedAt == nil {
						now := time.Now()
						completedAt = &now
					}
					updates["completed_at"] = completedAt
				}
				if err := tx.Model(&model.PaymentRecord{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}
