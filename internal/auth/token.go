package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bookmarket/internal/domain"
)

const minSecretLength = 16

// TokenService issues and verifies signed identity tokens.
type TokenService interface {
	Issue(ctx context.Context, userID string) (string, error)
	Verify(ctx context.Context, token string) (string, error)
}

type claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

type hmacTokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ TokenService = (*hmacTokenService)(nil)

// NewTokenService creates an HS256 token service. The secret must be at least
// 16 bytes and ttl positive.
func NewTokenService(secret string, ttl time.Duration) (TokenService, error) {
	return newTokenService(secret, ttl, time.Now)
}

func newTokenService(secret string, ttl time.Duration, now func() time.Time) (*hmacTokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &hmacTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    now,
	}, nil
}

func (s *hmacTokenService) Issue(_ context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id carried by token. Any signature, format or
// expiry problem is reported as domain.ErrInvalidToken.
func (s *hmacTokenService) Verify(_ context.Context, token string) (string, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", domain.ErrInvalidToken)
		}
		return "", domain.ErrInvalidToken
	}
	if !parsed.Valid || c.UserID == "" {
		return "", domain.ErrInvalidToken
	}
	return c.UserID, nil
}
