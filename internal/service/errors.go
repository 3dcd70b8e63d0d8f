package service

import (
	"errors"
)

// 错误分类
//
// ErrAuthenticationFailure: 签名缺失或错误，拒绝请求，记录安全日志，不重试
// ErrUnknownPayment / ErrUnknownTariff / ErrUnknownAccount: 数据缺口，保持 pending，需要人工介入或等待数据补齐
// ErrStoreUnavailable: 持久化失败，整个入账回滚，保持 pending 等待下次重试
var (
	ErrAuthenticationFailure = errors.New("webhook 签名校验失败")
	ErrUnknownPayment        = errors.New("未知的支付记录")
	ErrUnknownTariff         = errors.New("未知的套餐")
	ErrUnknownAccount        = errors.New("未知的用户账户")
	ErrStoreUnavailable      = errors.New("存储不可用")
)

// ErrorKind 错误分类标签，用于日志和指标
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuthenticationFailure):
		return "authentication_failure"
	case errors.Is(err, ErrUnknownPayment):
		return "unknown_payment"
	case errors.Is(err, ErrUnknownTariff):
		return "unknown_tariff"
	case errors.Is(err, ErrUnknownAccount):
		return "unknown_account"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
