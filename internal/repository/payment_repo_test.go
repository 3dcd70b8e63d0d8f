package repository

import (
	"context"
	"errors"
	"testing"

	"paybridge/internal/model"
	"paybridge/internal/testutil"
)

func TestPaymentRepository_CreateRejectsDuplicate(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	rec := &model.PaymentRecord{PaymentID: "pay_1", UserID: 1, TariffID: "premium_small"}
	if err := repo.Create(ctx, nil, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Status != model.PaymentStatusPending {
		t.Fatalf("status = %q, want pending", rec.Status)
	}

	dup := &model.PaymentRecord{PaymentID: "pay_1", UserID: 2, TariffID: "combo"}
	if err := repo.Create(ctx, nil, dup); !errors.Is(err, ErrDuplicatePayment) {
		t.Fatalf("err = %v, want ErrDuplicatePayment", err)
	}

	got, err := repo.GetByPaymentID(ctx, "pay_1")
	if err != nil {
		t.Fatalf("GetByPaymentID: %v", err)
	}
	if got.UserID != 1 {
		t.Fatalf("user_id = %d, duplicate overwrote the original", got.UserID)
	}
}

func TestPaymentRepository_MarkCompletedOnlyOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	testutil.SeedPayment(t, db, "pay_1", 1, "premium_small", model.PaymentStatusPending)

	if err := repo.MarkCompleted(ctx, nil, "pay_1"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	if err := repo.MarkCompleted(ctx, nil, "pay_1"); !errors.Is(err, ErrPaymentStatusInvalid) {
		t.Fatalf("second MarkCompleted err = %v, want ErrPaymentStatusInvalid", err)
	}

	got := testutil.GetPayment(t, db, "pay_1")
	if !got.IsCompleted() || got.CompletedAt == nil {
		t.Fatalf("record = %+v, want completed with completed_at", got)
	}
}

func TestPaymentRepository_ListPendingSkipsCompleted(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	testutil.SeedPayment(t, db, "pay_a", 1, "premium_small", model.PaymentStatusPending)
	testutil.SeedPayment(t, db, "pay_b", 1, "premium_small", model.PaymentStatusCompleted)
	testutil.SeedPayment(t, db, "pay_c", 2, "combo", model.PaymentStatusPending)

	pending, err := repo.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len = %d, want 2", len(pending))
	}
	for _, p := range pending {
		if p.PaymentID == "pay_b" {
			t.Fatal("completed payment listed as pending")
		}
	}
}

func TestPaymentRepository_LoadEmptyStore(t *testing.T) {
	repo := NewPaymentRepository(testutil.NewTestDB(t))

	all, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Fatalf("Load = %v, want empty map", all)
	}
}

func TestPaymentRepository_LoadUnknownStatusIsCorrupt(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.SeedPayment(t, db, "pay_1", 1, "premium_small", model.PaymentStatusPending)
	if err := db.Exec("UPDATE payment_record SET status = ? WHERE payment_id = ?", "refunded", "pay_1").Error; err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	_, err := NewPaymentRepository(db).Load(context.Background())
	if !errors.Is(err, ErrStoreCorrupt) {
		t.Fatalf("err = %v, want ErrStoreCorrupt", err)
	}
}

func TestPaymentRepository_SaveThenLoad(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	testutil.SeedPayment(t, db, "pay_old_pending", 1, "premium_small", model.PaymentStatusPending)
	testutil.SeedPayment(t, db, "pay_old_done", 1, "premium_small", model.PaymentStatusCompleted)

	err := repo.Save(ctx, map[string]*model.PaymentRecord{
		"pay_new": {UserID: 7, TariffID: "combo", Status: model.PaymentStatusPending},
		// completed 不能被改回 pending
		"pay_old_done": {UserID: 1, TariffID: "premium_small", Status: model.PaymentStatusPending},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	all, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := all["pay_old_pending"]; got == nil || got.Status != model.PaymentStatusPending {
		t.Errorf("record absent from mapping must be kept, got %+v", got)
	}
	if got := all["pay_new"]; got == nil || got.UserID != 7 || got.TariffID != "combo" || got.Status != model.PaymentStatusPending {
		t.Errorf("pay_new = %+v", got)
	}
	if got := all["pay_old_done"]; got == nil || !got.IsCompleted() {
		t.Errorf("pay_old_done = %+v, want still completed", got)
	}
}

func TestPaymentRepository_SaveNeverDeletesRecords(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	testutil.SeedPayment(t, db, "pay_done", 1, "premium_small", model.PaymentStatusCompleted)
	testutil.SeedPayment(t, db, "pay_open", 1, "premium_small", model.PaymentStatusPending)

	if err := repo.Save(ctx, map[string]*model.PaymentRecord{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got := testutil.GetPayment(t, db, "pay_done"); !got.IsCompleted() {
		t.Fatalf("record = %+v", got)
	}
	if got := testutil.GetPayment(t, db, "pay_open"); got.Status != model.PaymentStatusPending {
		t.Fatalf("record = %+v", got)
	}
}

func TestPaymentRepository_SaveRejectsUnknownStatusAtomically(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	testutil.SeedPayment(t, db, "pay_keep", 1, "premium_small", model.PaymentStatusPending)

	err := repo.Save(ctx, map[string]*model.PaymentRecord{
		"pay_bad": {UserID: 1, TariffID: "premium_small", Status: "refunded"},
	})
	if !errors.Is(err, ErrPaymentStatusInvalid) {
		t.Fatalf("err = %v, want ErrPaymentStatusInvalid", err)
	}

	// 整个事务回滚，原有记录仍在
	if got := testutil.GetPayment(t, db, "pay_keep"); got.Status != model.PaymentStatusPending {
		t.Fatalf("record = %+v", got)
	}
}
