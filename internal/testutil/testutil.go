// Package testutil 测试用的数据库、Redis 和配置
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/infrastructure/database"
	"paybridge/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TestWebhookSecret = "whsec_test"
	TariffPremium     = "premium_small"
	TariffImages      = "images_10"
	TariffCombo       = "combo"
)

// NewTestDB 在临时目录创建 SQLite 库并完成迁移
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver:   database.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, &config.MySQLConfig{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewTestRedis 启动 miniredis，测试结束自动关闭
func NewTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

// NewTestConfig 一份可通过校验的配置
func NewTestConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, Mode: "test"},
		Database: config.DatabaseConfig{Driver: database.DriverSQLite},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{TopupNotice: "topup_notice"},
		},
		Webhook: config.WebhookConfig{
			SecretKey:         TestWebhookSecret,
			SignatureHeader:   "X-Signature",
			AuthFailThreshold: 3,
		},
		Gateway: config.GatewayConfig{
			BaseURL:   "http://gateway.invalid/v3",
			ShopID:    "shop-test",
			SecretKey: "gw-secret",
			Timeout:   time.Second,
		},
		Reconcile: config.ReconcileConfig{Interval: time.Minute},
		Business: config.BusinessConfig{
			MaxRetryCount:  3,
			NewUserBalance: 30000,
			LockTTL:        5 * time.Second,
		},
		Tariffs: []config.TariffConfig{
			{ID: TariffPremium, Name: "Премиум 30K", Price: decimal.RequireFromString("149.00"), Currency: "RUB", PremiumTokens: 30000},
			{ID: TariffImages, Name: "10 изображений", Price: decimal.RequireFromString("99.00"), Currency: "RUB", Images: 10},
			{ID: TariffCombo, Name: "Комбо", Price: decimal.RequireFromString("449.00"), Currency: "RUB", PremiumTokens: 100000, Images: 10},
		},
	}
}

// SeedAccount 插入一个账户
func SeedAccount(t *testing.T, db *gorm.DB, userID int64) *model.Account {
	t.Helper()

	account := &model.Account{UserID: userID, Balance: 30000}
	if err := db.WithContext(context.Background()).Create(account).Error; err != nil {
		t.Fatalf("seed account %d: %v", userID, err)
	}
	return account
}

// SeedPayment 插入一条支付记录
func SeedPayment(t *testing.T, db *gorm.DB, paymentID string, userID int64, tariffID, status string) *model.PaymentRecord {
	t.Helper()

	record := &model.PaymentRecord{
		PaymentID: paymentID,
		UserID:    userID,
		TariffID:  tariffID,
		Status:    status,
	}
	if err := db.WithContext(context.Background()).Create(record).Error; err != nil {
		t.Fatalf("seed payment %s: %v", paymentID, err)
	}
	return record
}

// GetAccount 直接读库，绕过服务层
func GetAccount(t *testing.T, db *gorm.DB, userID int64) *model.Account {
	t.Helper()

	var account model.Account
	if err := db.Where("user_id = ?", userID).First(&account).Error; err != nil {
		t.Fatalf("get account %d: %v", userID, err)
	}
	return &account
}

// GetPayment 直接读库，绕过服务层
func GetPayment(t *testing.T, db *gorm.DB, paymentID string) *model.PaymentRecord {
	t.Helper()

	var record model.PaymentRecord
	if err := db.Where("payment_id = ?", paymentID).First(&record).Error; err != nil {
		t.Fatalf("get payment %s: %v", paymentID, err)
	}
	return &record
}
