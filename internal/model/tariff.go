package model

import (
	"github.com/shopspring/decimal"
)

// Tariff 套餐：购买后发放的高级 token 和/或图片额度，来自静态配置，只读
type Tariff struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	PremiumTokens int64           `json:"premium_tokens,omitempty"`
	Images        int64           `json:"images,omitempty"`
}
