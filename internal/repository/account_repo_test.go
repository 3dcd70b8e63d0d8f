package repository

import (
	"context"
	"errors"
	"testing"

	"paybridge/internal/model"
	"paybridge/internal/testutil"

	"gorm.io/gorm"
)

func TestAccountRepository_UpdateCreditsAndBumpsVersion(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db)
	testutil.SeedAccount(t, db, 42)

	var updated *model.Account
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = repo.Update(context.Background(), tx, 42, func(a *model.Account) error {
			a.PremiumBalance += 30000
			a.ImageBalance += 10
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.PremiumBalance != 30000 || updated.ImageBalance != 10 || updated.Version != 1 {
		t.Fatalf("updated = %+v", updated)
	}

	got := testutil.GetAccount(t, db, 42)
	if got.PremiumBalance != 30000 || got.ImageBalance != 10 || got.Balance != 30000 || got.Version != 1 {
		t.Fatalf("stored = %+v", got)
	}
}

func TestAccountRepository_UpdateRejectsNegativeBalance(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAccountRepository(db)
	testutil.SeedAccount(t, db, 42)

	_, err := repo.Update(context.Background(), nil, 42, func(a *model.Account) error {
		a.ImageBalance -= 1
		return nil
	})
	if !errors.Is(err, ErrBalanceNegative) {
		t.Fatalf("err = %v, want ErrBalanceNegative", err)
	}
	if got := testutil.GetAccount(t, db, 42); got.ImageBalance != 0 || got.Version != 0 {
		t.Fatalf("stored = %+v, want unchanged", got)
	}
}

func TestAccountRepository_UpdateMissingAccount(t *testing.T) {
	repo := NewAccountRepository(testutil.NewTestDB(t))

	called := false
	_, err := repo.Update(context.Background(), nil, 404, func(a *model.Account) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
	if called {
		t.Fatal("mutator ran for a missing account")
	}
}

func TestAccountRepository_GetOrCreateIsIdempotent(t *testing.T) {
	repo := NewAccountRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, 7, 30000)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.Balance != 30000 {
		t.Fatalf("balance = %d, want 30000", first.Balance)
	}

	second, err := repo.GetOrCreate(ctx, 7, 99999)
	if err != nil {
		t.Fatalf("GetOrCreate again: %v", err)
	}
	if second.ID != first.ID || second.Balance != 30000 {
		t.Fatalf("second = %+v, want the original account", second)
	}
}
