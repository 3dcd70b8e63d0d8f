// Package legacy 导入旧版机器人写在本地 JSON 文件里的支付记录
//
// 文件格式: {"<payment_id>": {"user_id": 42, "tariff_id": "premium_small", "status": "pending", "created_at": "..."}}
// user_id 可能是数字也可能是字符串，created_at 可能缺失、是 RFC3339 字符串或 unix 秒。
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"paybridge/internal/model"
	"paybridge/internal/repository"
)

type legacyPayment struct {
	UserID    json.RawMessage `json:"user_id"`
	TariffID  string          `json:"tariff_id"`
	Status    string          `json:"status"`
	CreatedAt json.RawMessage `json:"created_at"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
}

// ParsePayments 解析旧版支付文件，任何一条无法识别都返回 ErrStoreCorrupt，不做部分导入
func ParsePayments(r io.Reader) (map[string]*model.PaymentRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取支付文件失败: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]*model.PaymentRecord{}, nil
	}

	var raw map[string]legacyPayment
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreCorrupt, err)
	}

	now := time.Now()
	all := make(map[string]*model.PaymentRecord, len(raw))
	for id, p := range raw {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: 空的 payment_id", repository.ErrStoreCorrupt)
		}
		userID, err := parseUserID(p.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: payment_id=%s: %v", repository.ErrStoreCorrupt, id, err)
		}
		if !model.IsKnownPaymentStatus(p.Status) {
			return nil, fmt.Errorf("%w: payment_id=%s: 未知状态 %q", repository.ErrStoreCorrupt, id, p.Status)
		}
		createdAt, err := parseCreatedAt(p.CreatedAt, now)
		if err != nil {
			return nil, fmt.Errorf("%w: payment_id=%s: %v", repository.ErrStoreCorrupt, id, err)
		}

		all[id] = &model.PaymentRecord{
			PaymentID: id,
			UserID:    userID,
			TariffID:  p.TariffID,
			Status:    p.Status,
			CreatedAt: createdAt,
		}
	}
	return all, nil
}

func parseUserID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("缺少 user_id")
	}
	s := string(raw)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("user_id 不合法: %s", string(raw))
	}
	return id, nil
}

func parseCreatedAt(raw json.RawMessage, fallback time.Time) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return fallback, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("created_at 格式不支持: %s", s)
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, fmt.Errorf("created_at 格式不支持: %s", string(raw))
	}
	return time.Unix(0, int64(secs*float64(time.Second))), nil
}
