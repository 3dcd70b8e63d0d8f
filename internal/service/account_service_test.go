package service

import (
	"context"
	"errors"
	"testing"

	"paybridge/internal/testutil"
)

func TestAccountService_RegisterThenGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewAccountService(db, testutil.NewTestConfig())
	ctx := context.Background()

	if _, err := svc.GetAccount(ctx, 42); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("err = %v, want ErrUnknownAccount", err)
	}

	account, err := svc.Register(ctx, 42)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if account.Balance != 30000 {
		t.Fatalf("balance = %d, want new-user grant 30000", account.Balance)
	}

	got, err := svc.GetAccount(ctx, 42)
	if err != nil || got.ID != account.ID {
		t.Fatalf("GetAccount = %+v, %v", got, err)
	}

	if _, err := svc.Register(ctx, 0); err == nil {
		t.Fatal("Register(0) should fail")
	}
}

func TestTariffCatalog(t *testing.T) {
	catalog := NewTariffCatalog(testutil.NewTestConfig().Tariffs)

	tariff, ok := catalog.Get(testutil.TariffPremium)
	if !ok || tariff.PremiumTokens != 30000 || tariff.Images != 0 {
		t.Fatalf("Get = %+v, %v", tariff, ok)
	}

	// 返回副本，调用方修改不影响目录
	tariff.PremiumTokens = 1
	again, _ := catalog.Get(testutil.TariffPremium)
	if again.PremiumTokens != 30000 {
		t.Fatal("catalog entry was mutated through Get")
	}

	if _, ok := catalog.Get("missing"); ok {
		t.Fatal("unknown tariff resolved")
	}

	list := catalog.List()
	if len(list) != 3 || list[0].ID != testutil.TariffPremium {
		t.Fatalf("List = %+v", list)
	}
}
