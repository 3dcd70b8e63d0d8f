package repository

import (
	"context"
	"testing"

	"paybridge/internal/model"
	"paybridge/internal/testutil"
)

func TestOutboxRepository_RecordFailureGivesUpAtLimit(t *testing.T) {
	repo := NewOutboxRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	msg := &model.OutboxMessage{MessageKey: "pay_1", Topic: "topup_notice", Payload: "{}"}
	if err := repo.Create(ctx, nil, msg); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 1; i <= 2; i++ {
		giveUp, err := repo.RecordFailure(ctx, msg, 3)
		if err != nil {
			t.Fatalf("RecordFailure #%d: %v", i, err)
		}
		if giveUp {
			t.Fatalf("gave up after %d failures", i)
		}
	}

	giveUp, err := repo.RecordFailure(ctx, msg, 3)
	if err != nil || !giveUp {
		t.Fatalf("third RecordFailure = %v, %v; want give up", giveUp, err)
	}

	pending, err := repo.GetPendingMessages(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingMessages: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending = %d, failed message still pending", len(pending))
	}

	stored, err := repo.GetByMessageKey(ctx, "pay_1")
	if err != nil || len(stored) != 1 {
		t.Fatalf("GetByMessageKey = %v, %v", stored, err)
	}
	if stored[0].Status != model.OutboxStatusFailed || stored[0].RetryCount != 3 {
		t.Fatalf("stored = %+v", stored[0])
	}
}
