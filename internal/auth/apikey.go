package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/grabvid/grabvid/internal/domain"
	"github.com/grabvid/grabvid/internal/repository"
)

// API keys present as "sk_<keyID>_<secret>". The key ID is stored in
// clear for lookup; the secret only ever exists as a bcrypt hash.
const apiKeyPrefix = "sk"

// APIKeyService provisions and verifies v1 API keys.
type APIKeyService struct {
	repo repository.APIKeyRepository
	now  func() time.Time
}

// NewAPIKeyService creates an API key service. now may be nil,
// defaulting to time.Now.
func NewAPIKeyService(repo repository.APIKeyRepository, now func() time.Time) *APIKeyService {
	if now == nil {
		now = time.Now
	}
	return &APIKeyService{repo: repo, now: now}
}

// Provision creates a key for userUUID and returns the plaintext form.
// The plaintext is shown exactly once; it cannot be recovered later.
func (s *APIKeyService) Provision(ctx context.Context, userUUID, title string, premium bool) (string, *repository.APIKey, error) {
	keyID, err := randomHex(4)
	if err != nil {
		return "", nil, fmt.Errorf("generate key id: %w", err)
	}
	secret, err := randomHex(16)
	if err != nil {
		return "", nil, fmt.Errorf("generate secret: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash secret: %w", err)
	}

	key := &repository.APIKey{
		KeyID:      keyID,
		SecretHash: string(hash),
		UserUUID:   userUUID,
		Title:      title,
		Premium:    premium,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Insert(ctx, key); err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	plaintext := strings.Join([]string{apiKeyPrefix, keyID, secret}, "_")
	return plaintext, key, nil
}

// Verify parses a presented key, looks it up by key ID, and checks the
// secret against the stored hash. Every failure mode returns
// domain.ErrAPIKeyInvalid.
func (s *APIKeyService) Verify(ctx context.Context, presented string) (*repository.APIKey, error) {
	parts := strings.SplitN(presented, "_", 3)
	if len(parts) != 3 || parts[0] != apiKeyPrefix || parts[1] == "" || parts[2] == "" {
		return nil, domain.ErrAPIKeyInvalid
	}

	key, err := s.repo.FindByKeyID(ctx, parts[1])
	if err != nil {
		return nil, domain.ErrAPIKeyInvalid
	}

	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(parts[2])) != nil {
		return nil, domain.ErrAPIKeyInvalid
	}
	return key, nil
}

// Revoke disables a key by its public key ID.
func (s *APIKeyService) Revoke(ctx context.Context, keyID string) error {
	return s.repo.Revoke(ctx, keyID, s.now())
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
