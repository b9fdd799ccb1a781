// Package auth resolves caller identity: signed session tokens for web
// users and provisioned API keys for v1 integrations.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/grabvid/grabvid/internal/domain"
)

// SessionVerifier validates HS256 session tokens issued by the account
// system and extracts the caller's user UUID.
type SessionVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewSessionVerifier creates a verifier. now may be nil, defaulting to
// time.Now.
func NewSessionVerifier(secret string, now func() time.Time) *SessionVerifier {
	if now == nil {
		now = time.Now
	}
	return &SessionVerifier{secret: []byte(secret), now: now}
}

type sessionClaims struct {
	UserUUID string `json:"user_uuid"`
	jwt.RegisteredClaims
}

// Verify validates the session token and returns the user UUID. Any
// failure, including a payload without a user UUID, maps to
// domain.ErrAuthRequired so callers cannot distinguish token classes.
func (v *SessionVerifier) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return "", domain.ErrAuthRequired
	}

	userUUID := claims.UserUUID
	if userUUID == "" {
		userUUID = claims.Subject
	}
	if userUUID == "" {
		return "", domain.ErrAuthRequired
	}
	return userUUID, nil
}

// MintSession issues a session token for userUUID, valid for ttl. Used
// by tests and by the admin token endpoint.
func (v *SessionVerifier) MintSession(userUUID string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := &sessionClaims{
		UserUUID: userUUID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userUUID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
