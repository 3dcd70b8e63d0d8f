package job

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"paybridge/internal/gateway"
	"paybridge/internal/metrics"
	"paybridge/internal/model"
	"paybridge/internal/service"
)

// PaymentChecker 对账任务依赖的支付服务能力
type PaymentChecker interface {
	ListPending(ctx context.Context) ([]*model.PaymentRecord, error)
	CheckAndFulfill(ctx context.Context, paymentID string) (*service.CheckResult, error)
}

// ReconcileStats 单次对账结果
type ReconcileStats struct {
	Pending  int
	Credited int
	Already  int
	Waiting  int
	Timeouts int
	Failed   int
}

// ReconcileJob 对账任务
//
// webhook 推送是尽力而为的，网络分区或网关侧投递失败都会丢事件。
// 定时扫描所有 pending 支付并向网关查询，保证成功的支付最终都会入账。
type ReconcileJob struct {
	checker  PaymentChecker
	interval time.Duration
	running  atomic.Bool
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewReconcileJob(checker PaymentChecker, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ReconcileJob{
		checker:  checker,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start 阻塞运行直到 ctx 取消或调用 Stop
// 每次 tick 在独立 goroutine 中执行；上一轮未结束时本轮直接跳过，不排队
func (j *ReconcileJob) Start(ctx context.Context) {
	log.Printf("[ReconcileJob] 对账任务启动，间隔 %s", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		j.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.trigger(runCtx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

func (j *ReconcileJob) trigger(ctx context.Context) bool {
	if !j.running.CompareAndSwap(false, true) {
		metrics.ReconcileRuns.WithLabelValues("skipped").Inc()
		log.Println("[ReconcileJob] 上一轮对账尚未结束，跳过本轮")
		return false
	}

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer j.running.Store(false)
		j.reconcile(ctx)
	}()
	return true
}

// RunOnce 同步执行一轮对账，供命令行和测试使用
func (j *ReconcileJob) RunOnce(ctx context.Context) (*ReconcileStats, error) {
	if !j.running.CompareAndSwap(false, true) {
		return nil, errors.New("对账正在进行中")
	}
	defer j.running.Store(false)
	return j.reconcile(ctx)
}

func (j *ReconcileJob) reconcile(ctx context.Context) (*ReconcileStats, error) {
	records, err := j.checker.ListPending(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("failed").Inc()
		log.Printf("[ReconcileJob] 查询待确认支付失败: %v", err)
		return nil, err
	}

	stats := &ReconcileStats{Pending: len(records)}
	metrics.ReconcilePending.Set(float64(len(records)))

	if len(records) == 0 {
		metrics.ReconcileRuns.WithLabelValues("completed").Inc()
		return stats, nil
	}

	log.Printf("[ReconcileJob] 发现 %d 笔待确认支付", len(records))

	for _, record := range records {
		if ctx.Err() != nil {
			log.Println("[ReconcileJob] 对账被取消，剩余支付留待下一轮")
			break
		}
		j.reconcileOne(ctx, record, stats)
	}

	metrics.ReconcileRuns.WithLabelValues("completed").Inc()
	log.Printf("[ReconcileJob] 本轮对账完成: pending=%d, credited=%d, already=%d, waiting=%d, timeouts=%d, failed=%d",
		stats.Pending, stats.Credited, stats.Already, stats.Waiting, stats.Timeouts, stats.Failed)
	return stats, nil
}

func (j *ReconcileJob) reconcileOne(ctx context.Context, record *model.PaymentRecord, stats *ReconcileStats) {
	result, err := j.checker.CheckAndFulfill(ctx, record.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrGatewayTimeout):
			// 超时视为尚未成功，下一轮重试
			stats.Timeouts++
			metrics.GatewayTimeouts.Inc()
		default:
			stats.Failed++
			metrics.FulfillResults.WithLabelValues("reconcile", service.ErrorKind(err)).Inc()
			log.Printf("[ReconcileJob] 处理支付失败，本轮跳过: paymentID=%s, age=%s, err=%v",
				record.PaymentID, service.PendingAge(record), err)
		}
		return
	}

	if result.Fulfill == nil {
		stats.Waiting++
		return
	}

	metrics.FulfillResults.WithLabelValues("reconcile", result.Fulfill.Status).Inc()
	if result.Fulfill.Status == service.ResultCredited {
		stats.Credited++
		log.Printf("[ReconcileJob] 补偿入账成功: paymentID=%s, userID=%d", record.PaymentID, record.UserID)
	} else {
		stats.Already++
	}
}
