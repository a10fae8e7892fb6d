package repository

import (
	"context"

	"bookmarket/internal/domain"
)

// ListingFilter narrows Find results. Zero values mean "no constraint".
type ListingFilter struct {
	OwnerID     string
	FavoritedBy string
	// NameContains matches listing names case-insensitively.
	NameContains string
	Limit        int
	Offset       int
}

// ListingRepository exposes persistence operations for Listing aggregates.
//
// AddFavorite and RemoveFavorite are atomic conditional updates: they report
// whether the favorites set actually changed instead of requiring callers to
// load, mutate and save the listing.
type ListingRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, listing *domain.Listing) error
	Get(ctx context.Context, id string) (*domain.Listing, error)
	Find(ctx context.Context, filter ListingFilter) ([]domain.Listing, error)
	Update(ctx context.Context, id string, patch domain.ListingPatch) (*domain.Listing, error)
	Delete(ctx context.Context, id string) error
	AddFavorite(ctx context.Context, id, userID string) (bool, error)
	RemoveFavorite(ctx context.Context, id, userID string) (bool, error)
}
