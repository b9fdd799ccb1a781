package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// SQLiteAPIKeyRepository implements APIKeyRepository over SQLite.
type SQLiteAPIKeyRepository struct {
	db *sql.DB
}

// NewSQLiteAPIKeyRepository creates an API key repository.
func NewSQLiteAPIKeyRepository(db *sql.DB) *SQLiteAPIKeyRepository {
	return &SQLiteAPIKeyRepository{db: db}
}

// Insert stores a newly provisioned key.
func (r *SQLiteAPIKeyRepository) Insert(ctx context.Context, key *APIKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	premium := 0
	if key.Premium {
		premium = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (key_id, secret_hash, user_uuid, title, premium, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key.KeyID, key.SecretHash, key.UserUUID, nullString(key.Title),
		premium, formatTime(key.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// FindByKeyID locates an unrevoked key by its public key ID.
func (r *SQLiteAPIKeyRepository) FindByKeyID(ctx context.Context, keyID string) (*APIKey, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, key_id, secret_hash, user_uuid, title, premium, created_at, revoked_at
		 FROM api_keys WHERE key_id = ? AND revoked_at IS NULL LIMIT 1`, keyID)

	var key APIKey
	var title, revokedAt sql.NullString
	var premium int
	var createdAt string

	err := row.Scan(&key.ID, &key.KeyID, &key.SecretHash, &key.UserUUID,
		&title, &premium, &createdAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAPIKeyInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}

	key.Title = title.String
	key.Premium = premium == 1
	key.CreatedAt = parseTime(createdAt)
	if revokedAt.Valid {
		t := parseTime(revokedAt.String)
		key.RevokedAt = &t
	}
	return &key, nil
}

// Revoke marks a key unusable.
func (r *SQLiteAPIKeyRepository) Revoke(ctx context.Context, keyID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = ? WHERE key_id = ? AND revoked_at IS NULL`,
		formatTime(at), keyID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAPIKeyInvalid
	}
	return nil
}
