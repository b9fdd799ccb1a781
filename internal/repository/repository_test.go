package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func giftTx(user string, credits int64, expiredAt *time.Time) *domain.CreditTransaction {
	return &domain.CreditTransaction{
		TransNo:     domain.NewTransNo(),
		UserUUID:    user,
		TransType:   domain.TransTypeGift,
		Credits:     credits,
		Description: "test gift",
		ExpiredAt:   expiredAt,
		CreatedAt:   time.Now(),
	}
}

func TestCreditBalanceDerivation(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	for _, tx := range []*domain.CreditTransaction{
		giftTx("user-a", 5, nil),
		giftTx("user-a", 3, &future),
		giftTx("user-a", 10, &past), // expired, excluded from available
		giftTx("user-b", 7, nil),    // other user, never counted
	} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	balance, err := repo.Balance(ctx, "user-a", now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 8 {
		t.Errorf("Available = %d, want 8", balance.Available)
	}
	if balance.Expired != 10 {
		t.Errorf("Expired = %d, want 10", balance.Expired)
	}
	if balance.Total != 18 {
		t.Errorf("Total = %d, want 18", balance.Total)
	}
}

func TestCreditBalanceFlooredAtZero(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Hour)
	// Only expired credits remain; the raw sum of unexpired rows is 0,
	// and a stray negative row must not surface a negative balance.
	if err := repo.Insert(ctx, giftTx("user-a", 4, &past)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := repo.Insert(ctx, giftTx("user-a", -1, nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	balance, err := repo.Balance(ctx, "user-a", now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 0 {
		t.Errorf("Available = %d, want 0 (floored)", balance.Available)
	}
}

func TestInsertConsumeIfSufficient(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()
	now := time.Now()

	if err := repo.Insert(ctx, giftTx("user-a", 3, nil)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	consume := func(amount int64) (bool, error) {
		tx := &domain.CreditTransaction{
			TransNo:     domain.NewTransNo(),
			UserUUID:    "user-a",
			TransType:   domain.TransTypeConsume,
			Credits:     -amount,
			Description: "video download",
			Resolution:  "720p",
			VideoURL:    "https://video.twimg.com/ext_tw_video/1/pu/vid/720x1280/a.mp4",
			CreatedAt:   now,
		}
		return repo.InsertConsumeIfSufficient(ctx, tx, amount, now)
	}

	ok, err := consume(2)
	if err != nil {
		t.Fatalf("InsertConsumeIfSufficient: %v", err)
	}
	if !ok {
		t.Fatal("expected sufficient balance to accept the debit")
	}

	balance, err := repo.Balance(ctx, "user-a", now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 1 {
		t.Errorf("Available after debit = %d, want 1", balance.Available)
	}

	// Second debit exceeds the remaining balance: it must be rejected
	// and must leave no row behind.
	ok, err = consume(2)
	if err != nil {
		t.Fatalf("InsertConsumeIfSufficient: %v", err)
	}
	if ok {
		t.Fatal("expected insufficient balance to reject the debit")
	}

	txs, err := repo.ListByUser(ctx, "user-a", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("ledger rows = %d, want 2 (gift + one consume)", len(txs))
	}

	balance, err = repo.Balance(ctx, "user-a", now)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance.Available != 1 {
		t.Errorf("Available after rejected debit = %d, want 1", balance.Available)
	}
}

func TestInsertConsumeIgnoresExpiredCredits(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()
	now := time.Now()

	past := now.Add(-time.Minute)
	if err := repo.Insert(ctx, giftTx("user-a", 100, &past)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	tx := &domain.CreditTransaction{
		TransNo:   domain.NewTransNo(),
		UserUUID:  "user-a",
		TransType: domain.TransTypeConsume,
		Credits:   -1,
		CreatedAt: now,
	}
	ok, err := repo.InsertConsumeIfSufficient(ctx, tx, 1, now)
	if err != nil {
		t.Fatalf("InsertConsumeIfSufficient: %v", err)
	}
	if ok {
		t.Fatal("expected expired credits to not cover the debit")
	}
}

func TestCreditListByUserOrderAndFields(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	first := giftTx("user-a", 1, nil)
	first.CreatedAt = base
	second := &domain.CreditTransaction{
		TransNo:     domain.NewTransNo(),
		UserUUID:    "user-a",
		TransType:   domain.TransTypeCharge,
		Credits:     50,
		OrderNo:     "ORDER_001",
		Description: "pro pack",
		CreatedAt:   base.Add(time.Minute),
	}
	for _, tx := range []*domain.CreditTransaction{first, second} {
		if err := repo.Insert(ctx, tx); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	txs, err := repo.ListByUser(ctx, "user-a", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].TransNo != second.TransNo {
		t.Errorf("expected newest-first ordering, got %s first", txs[0].TransNo)
	}
	if txs[0].OrderNo != "ORDER_001" {
		t.Errorf("OrderNo = %q, want ORDER_001", txs[0].OrderNo)
	}
	if txs[0].TransType != domain.TransTypeCharge {
		t.Errorf("TransType = %q, want charge", txs[0].TransType)
	}
}

func TestCreditFindByOrderNo(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCreditRepository(db)
	ctx := context.Background()

	tx := &domain.CreditTransaction{
		TransNo:   domain.NewTransNo(),
		UserUUID:  "user-a",
		TransType: domain.TransTypeCharge,
		Credits:   20,
		OrderNo:   "ORDER_XYZ",
		CreatedAt: time.Now(),
	}
	if err := repo.Insert(ctx, tx); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := repo.FindByOrderNo(ctx, "ORDER_XYZ")
	if err != nil {
		t.Fatalf("FindByOrderNo: %v", err)
	}
	if found.TransNo != tx.TransNo {
		t.Errorf("TransNo = %q, want %q", found.TransNo, tx.TransNo)
	}

	if _, err := repo.FindByOrderNo(ctx, "ORDER_MISSING"); !errors.Is(err, domain.ErrTransactionNotFound) {
		t.Errorf("missing order error = %v, want ErrTransactionNotFound", err)
	}
}

func TestDownloadHistoryInsertAndStats(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteDownloadHistoryRepository(db)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	records := []*domain.DownloadHistoryRecord{
		{
			DownloadNo:      domain.NewDownloadNo(),
			UserUUID:        "user-a",
			Platform:        domain.PlatformTwitter,
			VideoURL:        "https://video.twimg.com/ext_tw_video/1/pu/vid/1280x720/a.mp4",
			Resolution:      "720p",
			Quality:         domain.QualityHD,
			FileName:        "TwitterDown_a_720p.mp4",
			CreditsConsumed: 2,
			Status:          domain.DownloadCompleted,
			CreatedAt:       base,
		},
		{
			DownloadNo:      domain.NewDownloadNo(),
			UserUUID:        "user-a",
			Platform:        domain.PlatformTwitter,
			VideoURL:        "https://video.twimg.com/ext_tw_video/2/pu/vid/640x360/b.mp4",
			Resolution:      "360p",
			Quality:         domain.QualitySD,
			FileName:        "TwitterDown_b_360p.mp4",
			CreditsConsumed: 1,
			Status:          domain.DownloadCompleted,
			CreatedAt:       base.Add(time.Minute),
		},
		{
			DownloadNo: domain.NewDownloadNo(),
			UserUUID:   "user-a",
			Platform:   domain.PlatformTwitter,
			VideoURL:   "https://video.twimg.com/ext_tw_video/3/pu/vid/1280x720/c.mp4",
			Resolution: "720p",
			Quality:    domain.QualityHD,
			Status:     domain.DownloadFailed, // excluded from stats
			CreatedAt:  base.Add(2 * time.Minute),
		},
	}
	for _, rec := range records {
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	list, err := repo.ListByUser(ctx, "user-a", 10, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d records, want 3", len(list))
	}
	if list[0].DownloadNo != records[2].DownloadNo {
		t.Errorf("expected newest-first ordering, got %s first", list[0].DownloadNo)
	}

	stats, err := repo.Stats(ctx, "user-a")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDownloads != 2 {
		t.Errorf("TotalDownloads = %d, want 2", stats.TotalDownloads)
	}
	if stats.TotalCreditsConsumed != 3 {
		t.Errorf("TotalCreditsConsumed = %d, want 3", stats.TotalCreditsConsumed)
	}
	if stats.HDDownloads != 1 || stats.SDDownloads != 1 {
		t.Errorf("HD/SD = %d/%d, want 1/1", stats.HDDownloads, stats.SDDownloads)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteAPIKeyRepository(db)
	ctx := context.Background()

	key := &APIKey{
		KeyID:      "k1a2b3c4",
		SecretHash: "$2a$10$fakehashfakehashfakehash",
		UserUUID:   "user-a",
		Title:      "production",
		Premium:    true,
		CreatedAt:  time.Now(),
	}
	if err := repo.Insert(ctx, key); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	found, err := repo.FindByKeyID(ctx, "k1a2b3c4")
	if err != nil {
		t.Fatalf("FindByKeyID: %v", err)
	}
	if found.UserUUID != "user-a" || !found.Premium {
		t.Errorf("unexpected key: %+v", found)
	}

	if err := repo.Revoke(ctx, "k1a2b3c4", time.Now()); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := repo.FindByKeyID(ctx, "k1a2b3c4"); !errors.Is(err, domain.ErrAPIKeyInvalid) {
		t.Errorf("revoked key error = %v, want ErrAPIKeyInvalid", err)
	}

	if _, err := repo.FindByKeyID(ctx, "missing"); !errors.Is(err, domain.ErrAPIKeyInvalid) {
		t.Errorf("unknown key error = %v, want ErrAPIKeyInvalid", err)
	}
}
