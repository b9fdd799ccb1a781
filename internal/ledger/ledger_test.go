package ledger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/repository"
)

func newTestService(t *testing.T, now func() time.Time) (*Service, repository.CreditRepository) {
	t.Helper()
	db, err := repository.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLiteCreditRepository(db)
	return NewService(repo, now, slog.New(slog.DiscardHandler)), repo
}

func TestGrantThenConsume(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.Grant(ctx, "user-a", 5, "welcome bonus", 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	balance, err := svc.Consume(ctx, "user-a", 2, "video download", ConsumeContext{
		Resolution: "720p",
		VideoURL:   "https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/a.mp4",
	})
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if balance.Available != 3 {
		t.Errorf("Available = %d, want 3", balance.Available)
	}

	history, err := svc.History(ctx, "user-a", 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d transactions, want 2", len(history))
	}
	debit := history[0]
	if debit.TransType != domain.TransTypeConsume {
		t.Errorf("TransType = %q, want consume", debit.TransType)
	}
	if debit.Credits != -2 {
		t.Errorf("Credits = %d, want -2 (debits stored negative)", debit.Credits)
	}
	if debit.Resolution != "720p" {
		t.Errorf("Resolution = %q, want 720p", debit.Resolution)
	}
}

func TestConsumeInsufficientReportsTrueCounts(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.Grant(ctx, "user-a", 1, "welcome bonus", 0); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	_, err := svc.Consume(ctx, "user-a", 2, "video download", ConsumeContext{})
	if err == nil {
		t.Fatal("expected insufficient credits error")
	}
	insufficient, ok := domain.IsInsufficientCredits(err)
	if !ok {
		t.Fatalf("error = %v, want InsufficientCreditsError", err)
	}
	if insufficient.Available != 1 || insufficient.Required != 2 {
		t.Errorf("counts = %d/%d, want 1/2", insufficient.Available, insufficient.Required)
	}

	// A rejected debit must leave the ledger untouched.
	history, err := svc.History(ctx, "user-a", 10, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("got %d transactions, want 1 (the grant only)", len(history))
	}
}

func TestGrantWithExpiry(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := base
	svc, _ := newTestService(t, func() time.Time { return clock })
	ctx := context.Background()

	if err := svc.Grant(ctx, "user-a", 10, "promo", 3); err != nil {
		t.Fatalf("Grant: %v", err)
	}

	balance, err := svc.Balance(ctx, "user-a")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 10 {
		t.Errorf("Available before expiry = %d, want 10", balance.Available)
	}

	clock = base.AddDate(0, 4, 0)
	balance, err = svc.Balance(ctx, "user-a")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 0 {
		t.Errorf("Available after expiry = %d, want 0", balance.Available)
	}
	if balance.Expired != 10 {
		t.Errorf("Expired = %d, want 10", balance.Expired)
	}
}

func TestChargeRecordsOrderNo(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	if err := svc.Charge(ctx, "user-a", 50, "ORDER_123", "pro pack", 12); err != nil {
		t.Fatalf("Charge: %v", err)
	}

	tx, err := repo.FindByOrderNo(ctx, "ORDER_123")
	if err != nil {
		t.Fatalf("FindByOrderNo: %v", err)
	}
	if tx.Credits != 50 || tx.TransType != domain.TransTypeCharge {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if tx.ExpiredAt == nil {
		t.Error("expected expiry to be set")
	}
}

func TestConsumeRejectsNegativeAmount(t *testing.T) {
	svc, _ := newTestService(t, nil)
	if _, err := svc.Consume(context.Background(), "user-a", -1, "bogus", ConsumeContext{}); err == nil {
		t.Fatal("expected error for negative amount")
	}
}
