package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
)

func newListing(ownerID, name string) *domain.Listing {
	return &domain.Listing{
		OwnerID:     ownerID,
		Name:        name,
		Brand:       "Penguin",
		Price:       12.5,
		Category:    "fiction",
		Description: "good condition",
		Images:      []string{"upload/a.jpg", "upload/b.jpg"},
	}
}

func TestListingRepositoryCreateGet(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	owner := createUser(t, users, "owner@x.com")

	listing := newListing(owner.ID, "Dune")
	require.NoError(t, listings.Create(ctx, listing))
	require.NotEmpty(t, listing.ID)
	assert.Equal(t, domain.ListingStateForSale, listing.State)

	got, err := listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, "Dune", got.Name)
	assert.Equal(t, 12.5, got.Price)
	assert.Equal(t, []string{"upload/a.jpg", "upload/b.jpg"}, got.Images)
	assert.Empty(t, got.Favorites)
	assert.False(t, got.IsFav)
	assert.Equal(t, domain.ListingStateForSale, got.State)
	require.NotNil(t, got.Owner)
	assert.Equal(t, owner.Name, got.Owner.Name)
	assert.Equal(t, owner.Phone, got.Owner.Phone)

	_, err = listings.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingRepositoryRejectsUnknownState(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	owner := createUser(t, users, "owner@x.com")

	listing := newListing(owner.ID, "Dune")
	listing.State = "Bogus"
	assert.Error(t, listings.Create(ctx, listing))
}

func TestListingRepositoryUpdate(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	owner := createUser(t, users, "owner@x.com")
	listing := newListing(owner.ID, "Dune")
	require.NoError(t, listings.Create(ctx, listing))

	name := "Dune Messiah"
	price := 20.0
	state := domain.ListingStateSold
	got, err := listings.Update(ctx, listing.ID, domain.ListingPatch{
		Name:   &name,
		Price:  &price,
		State:  &state,
		Images: []string{"upload/c.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", got.Name)
	assert.Equal(t, 20.0, got.Price)
	assert.Equal(t, domain.ListingStateSold, got.State)
	assert.Equal(t, []string{"upload/c.jpg"}, got.Images)
	assert.Equal(t, "Penguin", got.Brand)
	assert.Equal(t, owner.ID, got.OwnerID)

	got, err = listings.Update(ctx, listing.ID, domain.ListingPatch{Brand: &name})
	require.NoError(t, err)
	assert.Equal(t, []string{"upload/c.jpg"}, got.Images, "images untouched when patch has none")

	_, err = listings.Update(ctx, "missing", domain.ListingPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	owner := createUser(t, users, "owner@x.com")
	fan := createUser(t, users, "fan@x.com")
	listing := newListing(owner.ID, "Dune")
	require.NoError(t, listings.Create(ctx, listing))
	_, err := listings.AddFavorite(ctx, listing.ID, fan.ID)
	require.NoError(t, err)

	require.NoError(t, listings.Delete(ctx, listing.ID))

	_, err = listings.Get(ctx, listing.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	favs, err := listings.Find(ctx, repository.ListingFilter{FavoritedBy: fan.ID})
	require.NoError(t, err)
	assert.Empty(t, favs)

	assert.ErrorIs(t, listings.Delete(ctx, listing.ID), domain.ErrListingNotFound)
}

func TestListingRepositoryFavorites(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	owner := createUser(t, users, "owner@x.com")
	fan := createUser(t, users, "fan@x.com")
	other := createUser(t, users, "other@x.com")
	listing := newListing(owner.ID, "Dune")
	require.NoError(t, listings.Create(ctx, listing))

	added, err := listings.AddFavorite(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = listings.AddFavorite(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, added, "second add is a no-op")

	added, err = listings.AddFavorite(ctx, listing.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, added)

	got, err := listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{fan.ID, other.ID}, got.Favorites)
	assert.True(t, got.IsFav)

	removed, err := listings.RemoveFavorite(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = listings.RemoveFavorite(ctx, listing.ID, fan.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	got, err = listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, got.Favorites)
	assert.False(t, got.IsFav)

	_, err = listings.AddFavorite(ctx, "missing", fan.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
	_, err = listings.RemoveFavorite(ctx, "missing", fan.ID)
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestListingRepositoryFind(t *testing.T) {
	ctx := context.Background()
	users, listings := newTestRepos(t)
	alice := createUser(t, users, "alice@x.com")
	bob := createUser(t, users, "bob@x.com")

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 12; i++ {
		owner := alice
		if i%2 == 1 {
			owner = bob
		}
		listing := newListing(owner.ID, fmt.Sprintf("Book %02d", i))
		listing.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, listings.Create(ctx, listing))
		ids = append(ids, listing.ID)
	}
	_, err := listings.AddFavorite(ctx, ids[0], bob.ID)
	require.NoError(t, err)

	t.Run("newest first with paging", func(t *testing.T) {
		got, err := listings.Find(ctx, repository.ListingFilter{Limit: 5, Offset: 5})
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i, l := range got {
			assert.Equal(t, ids[11-5-i], l.ID)
		}
	})

	t.Run("owner", func(t *testing.T) {
		got, err := listings.Find(ctx, repository.ListingFilter{OwnerID: bob.ID})
		require.NoError(t, err)
		assert.Len(t, got, 6)
		for _, l := range got {
			assert.Equal(t, bob.ID, l.OwnerID)
		}
	})

	t.Run("favorited by", func(t *testing.T) {
		got, err := listings.Find(ctx, repository.ListingFilter{FavoritedBy: bob.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, ids[0], got[0].ID)
		assert.Equal(t, []string{bob.ID}, got[0].Favorites)
	})

	t.Run("name contains ignores case", func(t *testing.T) {
		got, err := listings.Find(ctx, repository.ListingFilter{NameContains: "book 1"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Book 11", got[0].Name)
		assert.Equal(t, "Book 10", got[1].Name)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := listings.Find(ctx, repository.ListingFilter{NameContains: "zzz"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}
