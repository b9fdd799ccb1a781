package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
)

// SQLiteCreditRepository implements CreditRepository over SQLite.
type SQLiteCreditRepository struct {
	db *sql.DB
}

// NewSQLiteCreditRepository creates a credit repository.
func NewSQLiteCreditRepository(db *sql.DB) *SQLiteCreditRepository {
	return &SQLiteCreditRepository{db: db}
}

const creditColumns = `trans_no, user_uuid, trans_type, credits, order_no, expired_at, description, resolution, video_url, created_at`

// Insert appends one transaction unconditionally.
func (r *SQLiteCreditRepository) Insert(ctx context.Context, tx *domain.CreditTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credits (`+creditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.TransNo, tx.UserUUID, string(tx.TransType), tx.Credits,
		nullString(tx.OrderNo), nullTime(tx.ExpiredAt),
		tx.Description, nullString(tx.Resolution), nullString(tx.VideoURL),
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

// InsertConsumeIfSufficient appends a consume row only when the live
// available balance covers required. Check and write are one statement,
// so two concurrent debits cannot both succeed against a stale read.
func (r *SQLiteCreditRepository) InsertConsumeIfSufficient(ctx context.Context, tx *domain.CreditTransaction, required int64, now time.Time) (bool, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO credits (`+creditColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE (
			SELECT COALESCE(SUM(credits), 0) FROM credits
			WHERE user_uuid = ? AND (expired_at IS NULL OR expired_at > ?)
		 ) >= ?`,
		tx.TransNo, tx.UserUUID, string(tx.TransType), tx.Credits,
		nullString(tx.OrderNo), nullTime(tx.ExpiredAt),
		tx.Description, nullString(tx.Resolution), nullString(tx.VideoURL),
		formatTime(tx.CreatedAt),
		tx.UserUUID, formatTime(now), required,
	)
	if err != nil {
		return false, fmt.Errorf("conditional consume insert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// Balance derives the balance projection for one user. Available is
// floored at zero for display.
func (r *SQLiteCreditRepository) Balance(ctx context.Context, userUUID string, now time.Time) (*domain.UserCreditBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT credits, expired_at FROM credits WHERE user_uuid = ?`, userUUID)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	defer rows.Close()

	balance := &domain.UserCreditBalance{UserUUID: userUUID}
	for rows.Next() {
		var credits int64
		var expiredAt sql.NullString
		if err := rows.Scan(&credits, &expiredAt); err != nil {
			return nil, fmt.Errorf("scan credit row: %w", err)
		}

		balance.Total += credits
		if !expiredAt.Valid || parseTime(expiredAt.String).After(now) {
			balance.Available += credits
		} else {
			balance.Expired += credits
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credit rows: %w", err)
	}

	if balance.Available < 0 {
		balance.Available = 0
	}
	return balance, nil
}

// ListByUser returns transactions newest-first.
func (r *SQLiteCreditRepository) ListByUser(ctx context.Context, userUUID string, limit, offset int) ([]*domain.CreditTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, `+creditColumns+` FROM credits
		 WHERE user_uuid = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		userUUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	defer rows.Close()

	var result []*domain.CreditTransaction
	for rows.Next() {
		tx, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// FindByOrderNo locates a charge row by its order number.
func (r *SQLiteCreditRepository) FindByOrderNo(ctx context.Context, orderNo string) (*domain.CreditTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, `+creditColumns+` FROM credits WHERE order_no = ? LIMIT 1`, orderNo)

	tx, err := scanCredit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return tx, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredit(row rowScanner) (*domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	var transType, createdAt string
	var orderNo, expiredAt, description, resolution, videoURL sql.NullString

	err := row.Scan(&tx.ID, &tx.TransNo, &tx.UserUUID, &transType, &tx.Credits,
		&orderNo, &expiredAt, &description, &resolution, &videoURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan credit transaction: %w", err)
	}

	tx.TransType = domain.TransType(transType)
	tx.OrderNo = orderNo.String
	tx.Description = description.String
	tx.Resolution = resolution.String
	tx.VideoURL = videoURL.String
	tx.CreatedAt = parseTime(createdAt)
	if expiredAt.Valid {
		t := parseTime(expiredAt.String)
		tx.ExpiredAt = &t
	}
	return &tx, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
