package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value. It is the only place a credential is read from a request.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", domain.ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", domain.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}

// Resolver turns an inbound request into the id of an existing user.
type Resolver struct {
	tokens TokenService
	users  repository.UserRepository
}

func NewResolver(tokens TokenService, users repository.UserRepository) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

func (r *Resolver) Resolve(req *http.Request) (string, error) {
	return r.ResolveHeader(req.Context(), req.Header.Get("Authorization"))
}

// ResolveHeader resolves a raw Authorization header value.
func (r *Resolver) ResolveHeader(ctx context.Context, header string) (string, error) {
	token, err := BearerToken(header)
	if err != nil {
		return "", err
	}
	userID, err := r.tokens.Verify(ctx, token)
	if err != nil {
		return "", err
	}
	if _, err := r.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", err
	}
	return userID, nil
}
