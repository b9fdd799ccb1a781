package repository

import (
	"context"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// CreditRepository persists the append-only credits ledger.
type CreditRepository interface {
	// Insert appends one transaction unconditionally (charge/gift).
	Insert(ctx context.Context, tx *domain.CreditTransaction) error

	// InsertConsumeIfSufficient appends a consume transaction only when
	// the user's available balance at execution time covers required.
	// The check and the write happen in one statement so concurrent
	// debits cannot both pass against a stale balance. Returns false
	// with no error when the balance was insufficient.
	InsertConsumeIfSufficient(ctx context.Context, tx *domain.CreditTransaction, required int64, now time.Time) (bool, error)

	// Balance derives the balance projection for one user.
	Balance(ctx context.Context, userUUID string, now time.Time) (*domain.UserCreditBalance, error)

	// ListByUser returns transactions newest-first.
	ListByUser(ctx context.Context, userUUID string, limit, offset int) ([]*domain.CreditTransaction, error)

	// FindByOrderNo locates a charge row by its purchase order number.
	FindByOrderNo(ctx context.Context, orderNo string) (*domain.CreditTransaction, error)
}

// DownloadHistoryRepository persists the append-only download audit log.
type DownloadHistoryRepository interface {
	// Insert appends one history row. Rows are never mutated.
	Insert(ctx context.Context, rec *domain.DownloadHistoryRecord) error

	// ListByUser returns history rows newest-first.
	ListByUser(ctx context.Context, userUUID string, limit, offset int) ([]*domain.DownloadHistoryRecord, error)

	// Stats derives download statistics over completed rows.
	Stats(ctx context.Context, userUUID string) (*domain.DownloadStats, error)
}

// APIKey is a provisioned v1 API credential. The secret is stored only
// as a bcrypt hash.
type APIKey struct {
	ID         int64
	KeyID      string
	SecretHash string
	UserUUID   string
	Title      string
	Premium    bool
	CreatedAt  time.Time
	RevokedAt  *time.Time
}

// APIKeyRepository persists provisioned API keys.
type APIKeyRepository interface {
	// Insert stores a newly provisioned key.
	Insert(ctx context.Context, key *APIKey) error

	// FindByKeyID locates an unrevoked key by its public key ID.
	FindByKeyID(ctx context.Context, keyID string) (*APIKey, error)

	// Revoke marks a key unusable.
	Revoke(ctx context.Context, keyID string, at time.Time) error
}
