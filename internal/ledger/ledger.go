// Package ledger maintains the auditable credits balance. All balances
// are derived from the append-only transaction log, never stored.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/repository"
)

// Service exposes the debit/credit primitives used by fulfillment and
// the billing endpoints.
type Service struct {
	repo   repository.CreditRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewService creates a ledger service. now may be nil, defaulting to
// time.Now.
func NewService(repo repository.CreditRepository, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now, logger: logger}
}

// Balance derives the current balance projection for one user.
func (s *Service) Balance(ctx context.Context, userUUID string) (*domain.UserCreditBalance, error) {
	balance, err := s.repo.Balance(ctx, userUUID, s.now())
	if err != nil {
		return nil, fmt.Errorf("derive balance: %w", err)
	}
	return balance, nil
}

// ConsumeContext carries optional audit fields for a debit.
type ConsumeContext struct {
	Resolution string
	VideoURL   string
}

// Consume debits amount credits from the user. The sufficiency check and
// the ledger write execute as one conditional statement, so concurrent
// debits against the same user cannot overdraw. On insufficiency it
// returns an InsufficientCreditsError carrying the true available and
// required counts and writes nothing.
func (s *Service) Consume(ctx context.Context, userUUID string, amount int64, description string, audit ConsumeContext) (*domain.UserCreditBalance, error) {
	if amount < 0 {
		return nil, fmt.Errorf("consume amount must not be negative: %d", amount)
	}

	tx := &domain.CreditTransaction{
		TransNo:     domain.NewTransNo(),
		UserUUID:    userUUID,
		TransType:   domain.TransTypeConsume,
		Credits:     -amount,
		Description: description,
		Resolution:  audit.Resolution,
		VideoURL:    audit.VideoURL,
		CreatedAt:   s.now(),
	}

	inserted, err := s.repo.InsertConsumeIfSufficient(ctx, tx, amount, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	if !inserted {
		balance, berr := s.repo.Balance(ctx, userUUID, s.now())
		if berr != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, berr)
		}
		return nil, &domain.InsufficientCreditsError{
			Available: balance.Available,
			Required:  amount,
		}
	}

	balance, err := s.repo.Balance(ctx, userUUID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	s.logger.Info("credits consumed",
		"user_uuid", userUUID,
		"trans_no", tx.TransNo,
		"credits", amount,
		"remaining", balance.Available,
	)
	return balance, nil
}

// Grant appends a gift transaction, optionally expiring validMonths from
// now.
func (s *Service) Grant(ctx context.Context, userUUID string, amount int64, description string, validMonths int) error {
	tx := &domain.CreditTransaction{
		TransNo:     domain.NewTransNo(),
		UserUUID:    userUUID,
		TransType:   domain.TransTypeGift,
		Credits:     amount,
		Description: description,
		ExpiredAt:   s.expiry(validMonths),
		CreatedAt:   s.now(),
	}

	if err := s.repo.Insert(ctx, tx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	s.logger.Info("credits granted",
		"user_uuid", userUUID,
		"trans_no", tx.TransNo,
		"credits", amount,
	)
	return nil
}

// Charge appends a charge transaction tied to a settled purchase order.
// Guarding against the same order being applied twice is the caller's
// job; the order's own status transition happens exactly once.
func (s *Service) Charge(ctx context.Context, userUUID string, amount int64, orderNo, description string, validMonths int) error {
	tx := &domain.CreditTransaction{
		TransNo:     domain.NewTransNo(),
		UserUUID:    userUUID,
		TransType:   domain.TransTypeCharge,
		Credits:     amount,
		OrderNo:     orderNo,
		Description: description,
		ExpiredAt:   s.expiry(validMonths),
		CreatedAt:   s.now(),
	}

	if err := s.repo.Insert(ctx, tx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	s.logger.Info("credits charged",
		"user_uuid", userUUID,
		"trans_no", tx.TransNo,
		"order_no", orderNo,
		"credits", amount,
	)
	return nil
}

// FindByOrderNo locates a charge row by its purchase order number, used
// to keep order settlement idempotent.
func (s *Service) FindByOrderNo(ctx context.Context, orderNo string) (*domain.CreditTransaction, error) {
	return s.repo.FindByOrderNo(ctx, orderNo)
}

// History returns the user's transactions newest-first.
func (s *Service) History(ctx context.Context, userUUID string, limit, offset int) ([]*domain.CreditTransaction, error) {
	return s.repo.ListByUser(ctx, userUUID, limit, offset)
}

func (s *Service) expiry(validMonths int) *time.Time {
	if validMonths <= 0 {
		return nil
	}
	t := s.now().AddDate(0, validMonths, 0)
	return &t
}
