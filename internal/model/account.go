package model

import (
	"time"
)

// Account 用户账户表
// 记录用户的各类额度余额，账户在用户首次和机器人交互时创建
type Account struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64     `gorm:"uniqueIndex;not null" json:"user_id"`       // 聊天平台用户ID
	Balance        int64     `gorm:"not null;default:0" json:"balance"`         // 基础额度（token）
	PremiumBalance int64     `gorm:"not null;default:0" json:"premium_balance"` // 高级模型额度（token）
	ImageBalance   int64     `gorm:"not null;default:0" json:"image_balance"`   // 图片生成次数
	Version        int       `gorm:"not null;default:0" json:"version"`         // 每次变更递增
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// Valid 余额必须是非负整数
func (a *Account) Valid() bool {
	return a.Balance >= 0 && a.PremiumBalance >= 0 && a.ImageBalance >= 0
}
