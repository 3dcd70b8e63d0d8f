package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage 本地消息表
// 充值到账通知和入账写在同一个事务里，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}

// TopupNotice 充值到账通知，聊天机器人消费后发送给用户
type TopupNotice struct {
	NoticeNo      string    `json:"notice_no"`
	PaymentID     string    `json:"payment_id"`
	UserID        int64     `json:"user_id"`
	TariffID      string    `json:"tariff_id"`
	TariffName    string    `json:"tariff_name"`
	PremiumTokens int64     `json:"premium_tokens"`
	Images        int64     `json:"images"`
	Text          string    `json:"text"`
	CreditedAt    time.Time `json:"credited_at"`
}
