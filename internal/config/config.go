package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ErrMissingWebhookSecret = errors.New("未配置 webhook 签名密钥")
	ErrMissingGatewayAuth   = errors.New("未配置支付网关凭证")
	ErrEmptyTariffs         = errors.New("未配置任何套餐")
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Business  BusinessConfig  `mapstructure:"business"`
	Tariffs   []TariffConfig  `mapstructure:"tariffs"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储引擎选择：mysql 用于生产，sqlite 用于单机部署
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TopupNotice string `mapstructure:"topup_notice"`
}

type WebhookConfig struct {
	SecretKey         string `mapstructure:"secret_key"`
	SignatureHeader   string `mapstructure:"signature_header"`
	AuthFailThreshold int64  `mapstructure:"auth_fail_threshold"`
}

type GatewayConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	ShopID    string        `mapstructure:"shop_id"`
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ReturnURL string        `mapstructure:"return_url"`
}

type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type BusinessConfig struct {
	MaxRetryCount  int           `mapstructure:"max_retry_count"`
	NewUserBalance int64         `mapstructure:"new_user_balance"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

// TariffConfig 套餐目录项，只读
type TariffConfig struct {
	ID            string          `mapstructure:"id"`
	Name          string          `mapstructure:"name"`
	Price         decimal.Decimal `mapstructure:"price"`
	Currency      string          `mapstructure:"currency"`
	PremiumTokens int64           `mapstructure:"premium_tokens"`
	Images        int64           `mapstructure:"images"`
}

// 可以通过环境变量覆盖的密钥类配置
var envKeys = []string{
	"webhook.secret_key",
	"gateway.shop_id",
	"gateway.secret_key",
	"mysql.password",
	"redis.password",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("webhook.signature_header", "X-Signature")
	v.SetDefault("webhook.auth_fail_threshold", 10)
	v.SetDefault("gateway.base_url", "https://api.yookassa.ru/v3")
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("reconcile.interval", 10*time.Minute)
	v.SetDefault("kafka.topic.topup_notice", "topup_notice")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.new_user_balance", 30000)
	v.SetDefault("business.lock_ttl", 30*time.Second)
}

// Load 读取并校验配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("绑定环境变量失败: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(decimalHook())); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 缺少签名密钥或网关凭证属于启动期致命错误
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Webhook.SecretKey) == "" {
		return ErrMissingWebhookSecret
	}
	if c.Gateway.ShopID == "" || c.Gateway.SecretKey == "" {
		return ErrMissingGatewayAuth
	}
	if len(c.Tariffs) == 0 {
		return ErrEmptyTariffs
	}
	seen := make(map[string]bool, len(c.Tariffs))
	for _, t := range c.Tariffs {
		if t.ID == "" {
			return fmt.Errorf("套餐缺少 id: name=%s", t.Name)
		}
		if seen[t.ID] {
			return fmt.Errorf("套餐 id 重复: %s", t.ID)
		}
		seen[t.ID] = true
		if t.PremiumTokens < 0 || t.Images < 0 {
			return fmt.Errorf("套餐额度不能为负数: %s", t.ID)
		}
	}
	if c.Reconcile.Interval <= 0 {
		return fmt.Errorf("对账间隔必须大于0: %s", c.Reconcile.Interval)
	}
	return nil
}

// decimalHook 在默认钩子基础上支持把 "199.00" 解析成 decimal.Decimal
func decimalHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		func(_ reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
			if t != reflect.TypeOf(decimal.Decimal{}) {
				return data, nil
			}
			switch v := data.(type) {
			case string:
				return decimal.NewFromString(v)
			case int:
				return decimal.NewFromInt(int64(v)), nil
			case int64:
				return decimal.NewFromInt(v), nil
			case float64:
				return decimal.NewFromFloat(v), nil
			}
			return data, nil
		},
	)
}
