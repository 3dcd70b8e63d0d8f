package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AuthFailureTracker 按来源 IP 统计 webhook 验签失败次数
// 同一来源短时间内反复失败可能是伪造攻击
type AuthFailureTracker struct {
	client    *redis.Client
	window    time.Duration
	threshold int64
}

func NewAuthFailureTracker(client *redis.Client, window time.Duration, threshold int64) *AuthFailureTracker {
	return &AuthFailureTracker{
		client:    client,
		window:    window,
		threshold: threshold,
	}
}

func authFailureKey(source string) string {
	return fmt.Sprintf("webhook:authfail:%s", source)
}

// Record 记录一次失败，返回窗口内累计次数以及是否超过阈值
func (t *AuthFailureTracker) Record(ctx context.Context, source string) (int64, bool, error) {
	key := authFailureKey(source)

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	// 窗口从第一次失败开始计算
	if count == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return count, false, err
		}
	}

	return count, t.threshold > 0 && count >= t.threshold, nil
}

func (t *AuthFailureTracker) Count(ctx context.Context, source string) (int64, error) {
	n, err := t.client.Get(ctx, authFailureKey(source)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
