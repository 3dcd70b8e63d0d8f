package job

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paybridge/internal/gateway"
	"paybridge/internal/infrastructure/lock"
	"paybridge/internal/model"
	"paybridge/internal/service"
	"paybridge/internal/testutil"

	"gorm.io/gorm"
)

type stubGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	errs     map[string]error
}

func (g *stubGateway) FindPayment(_ context.Context, paymentID string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.errs[paymentID]; err != nil {
		return nil, err
	}
	status, ok := g.statuses[paymentID]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	return &gateway.Payment{ID: paymentID, Status: status}, nil
}

func (g *stubGateway) CreatePayment(context.Context, *gateway.CreatePaymentRequest) (*gateway.Payment, error) {
	panic("not used by reconciliation")
}

func newReconcileFixture(t *testing.T) (*ReconcileJob, *stubGateway, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t)
	rdb, _ := testutil.NewTestRedis(t)
	cfg := testutil.NewTestConfig()
	tariffs := service.NewTariffCatalog(cfg.Tariffs)
	fulfiller := service.NewFulfillService(db, lock.NewLocker(rdb, cfg.Business.LockTTL), tariffs, cfg)
	gw := &stubGateway{statuses: map[string]string{}, errs: map[string]error{}}
	payments := service.NewPaymentService(db, gw, tariffs, fulfiller, cfg)
	return NewReconcileJob(payments, time.Hour), gw, db
}

func TestReconcile_CreditsPaymentThatNeverGotWebhook(t *testing.T) {
	j, gw, db := newReconcileFixture(t)
	testutil.SeedAccount(t, db, 42)
	testutil.SeedPayment(t, db, "pay_123", 42, testutil.TariffPremium, model.PaymentStatusPending)
	gw.statuses["pay_123"] = gateway.StatusSucceeded

	stats, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if stats.Pending != 1 || stats.Credited != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if got := testutil.GetAccount(t, db, 42).PremiumBalance; got != 30000 {
		t.Fatalf("premium balance = %d, want 30000", got)
	}
	if got := testutil.GetPayment(t, db, "pay_123"); !got.IsCompleted() {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	// 下一轮没有 pending 支付
	stats, err = j.RunOnce(context.Background())
	if err != nil || stats.Pending != 0 {
		t.Fatalf("second pass = %+v, %v", stats, err)
	}
}

func TestReconcile_TimeoutAndFailuresAreSkipped(t *testing.T) {
	j, gw, db := newReconcileFixture(t)
	testutil.SeedAccount(t, db, 42)
	testutil.SeedPayment(t, db, "pay_slow", 42, testutil.TariffPremium, model.PaymentStatusPending)
	testutil.SeedPayment(t, db, "pay_orphan", 999, testutil.TariffPremium, model.PaymentStatusPending)
	testutil.SeedPayment(t, db, "pay_waiting", 42, testutil.TariffPremium, model.PaymentStatusPending)
	testutil.SeedPayment(t, db, "pay_ok", 42, testutil.TariffImages, model.PaymentStatusPending)
	gw.errs["pay_slow"] = gateway.ErrGatewayTimeout
	gw.statuses["pay_orphan"] = gateway.StatusSucceeded
	gw.statuses["pay_waiting"] = gateway.StatusPending
	gw.statuses["pay_ok"] = gateway.StatusSucceeded

	stats, err := j.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := ReconcileStats{Pending: 4, Credited: 1, Waiting: 1, Timeouts: 1, Failed: 1}
	if *stats != want {
		t.Fatalf("stats = %+v, want %+v", *stats, want)
	}

	for _, id := range []string{"pay_slow", "pay_orphan", "pay_waiting"} {
		if got := testutil.GetPayment(t, db, id); got.Status != model.PaymentStatusPending {
			t.Errorf("%s status = %s, want pending", id, got.Status)
		}
	}
	if got := testutil.GetAccount(t, db, 42).ImageBalance; got != 10 {
		t.Fatalf("image balance = %d, want 10", got)
	}
}

// blockingChecker 让 ListPending 阻塞，模拟一轮耗时很长的对账
type blockingChecker struct {
	release chan struct{}
	calls   int32
}

func (c *blockingChecker) ListPending(ctx context.Context) ([]*model.PaymentRecord, error) {
	atomic.AddInt32(&c.calls, 1)
	select {
	case <-c.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func (c *blockingChecker) CheckAndFulfill(context.Context, string) (*service.CheckResult, error) {
	return &service.CheckResult{}, nil
}

func TestReconcile_OverlappingTickIsSkipped(t *testing.T) {
	checker := &blockingChecker{release: make(chan struct{})}
	j := NewReconcileJob(checker, time.Hour)
	ctx := context.Background()

	if !j.trigger(ctx) {
		t.Fatal("first tick was not started")
	}
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&checker.calls) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first tick never ran")
		}
		time.Sleep(time.Millisecond)
	}

	if j.trigger(ctx) {
		t.Fatal("overlapping tick should be skipped")
	}
	if _, err := j.RunOnce(ctx); err == nil {
		t.Fatal("RunOnce should refuse while a pass is running")
	}

	close(checker.release)
	j.wg.Wait()

	if !j.trigger(ctx) {
		t.Fatal("tick after completion should run")
	}
	j.wg.Wait()

	if n := atomic.LoadInt32(&checker.calls); n != 2 {
		t.Fatalf("passes = %d, want 2", n)
	}
}

type countingChecker struct {
	calls int32
}

func (c *countingChecker) ListPending(context.Context) ([]*model.PaymentRecord, error) {
	atomic.AddInt32(&c.calls, 1)
	return nil, nil
}

func (c *countingChecker) CheckAndFulfill(context.Context, string) (*service.CheckResult, error) {
	return &service.CheckResult{}, nil
}

func TestReconcileJob_TicksUntilStopped(t *testing.T) {
	checker := &countingChecker{}
	j := NewReconcileJob(checker, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		j.Start(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&checker.calls) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not tick")
		}
		time.Sleep(time.Millisecond)
	}

	j.Stop()
	j.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}
