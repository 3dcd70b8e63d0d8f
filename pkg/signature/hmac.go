package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sign 返回 body 的 HMAC-SHA256 十六进制摘要
func Sign(rawBody []byte, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验支付网关推送的签名
//
// 密钥为空属于配置错误，一律返回 false，调用方必须拒绝请求。
// 比较使用 hmac.Equal（常量时间），避免时序侧信道。
func Verify(rawBody []byte, provided string, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}

	provided = strings.TrimSpace(provided)
	if provided == "" {
		return false
	}

	got, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(rawBody)
	return hmac.Equal(got, mac.Sum(nil))
}
