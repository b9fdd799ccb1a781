package domain

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// TransType classifies a ledger transaction.
type TransType string

const (
	TransTypeCharge  TransType = "charge"  // purchased credits
	TransTypeConsume TransType = "consume" // debit, credits stored negative
	TransTypeGift    TransType = "gift"    // granted credits
)

// CreditTransaction is one append-only row in the credits ledger.
// Balances are always derived from the sum of rows, never stored.
type CreditTransaction struct {
	ID          int64
	TransNo     string
	UserUUID    string
	TransType   TransType
	Credits     int64 // negative for debits
	OrderNo     string
	ExpiredAt   *time.Time
	Description string
	Resolution  string
	VideoURL    string
	CreatedAt   time.Time
}

// UserCreditBalance is a derived, read-only projection over the ledger.
type UserCreditBalance struct {
	UserUUID  string
	Total     int64
	Available int64 // floored at 0
	Expired   int64
}

// Credit costs by rendition tier.
const (
	CreditsPerHDDownload = 2
	CreditsPerSDDownload = 1
)

// RequiredCredits returns the cost to download a video at the given
// resolution. Heights at or above the HD threshold cost more.
func RequiredCredits(resolution string) int64 {
	if ResolutionHeight(resolution) >= HDThresholdHeight {
		return CreditsPerHDDownload
	}
	return CreditsPerSDDownload
}

// NewTransNo generates a sortable ledger serial number.
func NewTransNo() string {
	return "CREDIT_" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
