package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// webhook 推送和对账轮询可能同时对同一笔支付入账，重复推送也会并发到达。
// 入账前按 payment_id 加锁，保证"检查状态 -> 加额度 -> 标记完成"串行执行：
//
//   webhook:   获取锁 -> 状态 pending -> 入账 -> 标记 completed -> 释放锁
//   对账任务:   获取锁失败，等待... -> 获取锁 -> 状态 completed -> 直接返回
//
// 加锁：SET key value NX PX ttl
//   - NX 保证互斥，PX 防止进程崩溃后死锁
//   - value 是持有者标识，释放时校验，防止误删别人的锁
//
// 释放：Lua 脚本保证"比较 + 删除"原子执行
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
	ErrNotHeld    = errors.New("锁已过期或被其他持有者占用")
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 持有者标识
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

func (l *DistributedLock) Key() string {
	return l.key
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁，只删除自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Locker 按 payment_id 创建入账锁
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// NewFulfillLock 创建入账锁（按支付单维度）
// 不同支付单可以并发入账，同一支付单只能串行
func (l *Locker) NewFulfillLock(paymentID string) *DistributedLock {
	key := fmt.Sprintf("fulfill:lock:payment:%s", paymentID)
	return NewDistributedLock(l.client, key, uuid.NewString(), l.ttl)
}
