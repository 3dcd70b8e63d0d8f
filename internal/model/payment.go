package model

import (
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
)

// 支付记录只允许 pending -> completed，且只发生一次
var ValidStatusTransitions = map[string][]string{
	PaymentStatusPending: {PaymentStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

func IsKnownPaymentStatus(status string) bool {
	return status == PaymentStatusPending || status == PaymentStatusCompleted
}

// PaymentRecord 支付记录表
// payment_id 由支付网关分配；记录永不删除，作为审计留痕
type PaymentRecord struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"-"`
	PaymentID   string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_id"`
	UserID      int64      `gorm:"index;not null" json:"user_id"`
	TariffID    string     `gorm:"type:varchar(64);not null" json:"tariff_id"`
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_record"
}

func (p *PaymentRecord) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}
