package service

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
	"bookmarket/internal/storage"
)

// PageSize is the number of listings returned per Search page.
const PageSize = 5

// CreateListingInput carries the attributes of a new listing. Images holds
// references already returned by the image storage.
type CreateListingInput struct {
	Name        string
	Brand       string
	Price       float64
	Category    string
	Description string
	State       string
	Images      []string
}

// FavoriteRecorder observes successful favorite changes.
type FavoriteRecorder interface {
	FavoriteAdded()
	FavoriteRemoved()
}

// ListingService owns listing reads and every listing mutation, including the
// ownership and favorite rules.
type ListingService interface {
	Create(ctx context.Context, ownerID string, in CreateListingInput) (*domain.Listing, error)
	Get(ctx context.Context, listingID string) (*domain.Listing, error)
	Search(ctx context.Context, keyword string, page int) ([]domain.Listing, error)
	ListAll(ctx context.Context) ([]domain.Listing, error)
	ListOwned(ctx context.Context, requesterID string) ([]domain.Listing, error)
	ListFavorites(ctx context.Context, requesterID string) ([]domain.Listing, error)
	AddFavorite(ctx context.Context, listingID, requesterID string) (*domain.Listing, error)
	RemoveFavorite(ctx context.Context, listingID, requesterID string) (*domain.Listing, error)
	ChangeState(ctx context.Context, listingID, requesterID, state string) (*domain.Listing, error)
	Edit(ctx context.Context, listingID, requesterID string, patch domain.ListingPatch) (*domain.Listing, error)
	Delete(ctx context.Context, listingID, requesterID string) error
}

type listingService struct {
	listings repository.ListingRepository
	images   storage.Service
	logger   *logrus.Logger
	recorder FavoriteRecorder
	policy   *bluemonday.Policy
}

func NewListingService(listings repository.ListingRepository, images storage.Service, logger *logrus.Logger, recorder FavoriteRecorder) ListingService {
	if logger == nil {
		logger = logrus.New()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &listingService{
		listings: listings,
		images:   images,
		logger:   logger,
		recorder: recorder,
		policy:   bluemonday.StrictPolicy(),
	}
}

func (s *listingService) Create(ctx context.Context, ownerID string, in CreateListingInput) (*domain.Listing, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	listing := &domain.Listing{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Brand:       strings.TrimSpace(in.Brand),
		Price:       in.Price,
		Category:    strings.TrimSpace(in.Category),
		Description: s.sanitize(in.Description),
		Images:      in.Images,
		State:       domain.ListingStateForSale,
	}
	if listing.Images == nil {
		listing.Images = []string{}
	}
	if in.State != "" {
		state, err := domain.ParseListingState(in.State)
		if err != nil {
			return nil, err
		}
		listing.State = state
	}

	for _, f := range []struct{ field, value string }{
		{"name", listing.Name},
		{"brand", listing.Brand},
		{"category", listing.Category},
		{"description", listing.Description},
	} {
		if f.value == "" {
			return nil, domain.InvalidArgument("%s is required", f.field)
		}
	}
	if listing.Price < 0 {
		return nil, domain.InvalidArgument("price must not be negative")
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, err
	}
	return s.listings.Get(ctx, listing.ID)
}

func (s *listingService) Get(ctx context.Context, listingID string) (*domain.Listing, error) {
	if err := validateID(listingID); err != nil {
		return nil, err
	}
	return s.listings.Get(ctx, listingID)
}

// Search returns one page of listings, newest first. Pages start at 1; lower
// values are treated as 1.
func (s *listingService) Search(ctx context.Context, keyword string, page int) ([]domain.Listing, error) {
	if page < 1 {
		page = 1
	}
	return s.listings.Find(ctx, repository.ListingFilter{
		NameContains: strings.TrimSpace(keyword),
		Limit:        PageSize,
		Offset:       PageSize * (page - 1),
	})
}

func (s *listingService) ListAll(ctx context.Context) ([]domain.Listing, error) {
	return s.listings.Find(ctx, repository.ListingFilter{})
}

func (s *listingService) ListOwned(ctx context.Context, requesterID string) ([]domain.Listing, error) {
	if requesterID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.listings.Find(ctx, repository.ListingFilter{OwnerID: requesterID})
}

func (s *listingService) ListFavorites(ctx context.Context, requesterID string) ([]domain.Listing, error) {
	if requesterID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.listings.Find(ctx, repository.ListingFilter{FavoritedBy: requesterID})
}

func (s *listingService) AddFavorite(ctx context.Context, listingID, requesterID string) (*domain.Listing, error) {
	if err := validateID(listingID); err != nil {
		return nil, err
	}
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	// owner never changes, so checking it on this read is safe
	if listing.OwnerID == requesterID {
		return nil, domain.ErrOwnListing
	}

	added, err := s.listings.AddFavorite(ctx, listingID, requesterID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, domain.ErrAlreadyFavorite
	}
	s.recorder.FavoriteAdded()
	return s.listings.Get(ctx, listingID)
}

func (s *listingService) RemoveFavorite(ctx context.Context, listingID, requesterID string) (*domain.Listing, error) {
	if err := validateID(listingID); err != nil {
		return nil, err
	}
	removed, err := s.listings.RemoveFavorite(ctx, listingID, requesterID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, domain.ErrNotFavorite
	}
	s.recorder.FavoriteRemoved()
	return s.listings.Get(ctx, listingID)
}

func (s *listingService) ChangeState(ctx context.Context, listingID, requesterID, raw string) (*domain.Listing, error) {
	state, err := domain.ParseListingState(raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeOwner(ctx, listingID, requesterID); err != nil {
		return nil, err
	}
	return s.listings.Update(ctx, listingID, domain.ListingPatch{State: &state})
}

func (s *listingService) Edit(ctx context.Context, listingID, requesterID string, patch domain.ListingPatch) (*domain.Listing, error) {
	patch, err := s.normalizePatch(patch)
	if err != nil {
		return nil, err
	}
	current, err := s.authorizeOwner(ctx, listingID, requesterID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := s.listings.Update(ctx, listingID, patch)
	if err != nil {
		return nil, err
	}
	if patch.Images != nil {
		var stale []string
		for _, ref := range current.Images {
			if !slices.Contains(patch.Images, ref) {
				stale = append(stale, ref)
			}
		}
		s.removeImages(ctx, listingID, stale)
	}
	return updated, nil
}

func (s *listingService) Delete(ctx context.Context, listingID, requesterID string) error {
	listing, err := s.authorizeOwner(ctx, listingID, requesterID)
	if err != nil {
		return err
	}
	if err := s.listings.Delete(ctx, listingID); err != nil {
		return err
	}
	s.removeImages(ctx, listingID, listing.Images)
	return nil
}

func (s *listingService) authorizeOwner(ctx context.Context, listingID, requesterID string) (*domain.Listing, error) {
	if requesterID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if err := validateID(listingID); err != nil {
		return nil, err
	}
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != requesterID {
		return nil, domain.ErrNotOwner
	}
	return listing, nil
}

func (s *listingService) normalizePatch(patch domain.ListingPatch) (domain.ListingPatch, error) {
	required := []struct {
		field string
		value **string
	}{
		{"name", &patch.Name},
		{"brand", &patch.Brand},
		{"category", &patch.Category},
	}
	for _, r := range required {
		if *r.value == nil {
			continue
		}
		trimmed := strings.TrimSpace(**r.value)
		if trimmed == "" {
			return patch, domain.InvalidArgument("%s must not be empty", r.field)
		}
		*r.value = &trimmed
	}
	if patch.Description != nil {
		clean := s.sanitize(*patch.Description)
		if clean == "" {
			return patch, domain.InvalidArgument("description must not be empty")
		}
		patch.Description = &clean
	}
	if patch.Price != nil && *patch.Price < 0 {
		return patch, domain.InvalidArgument("price must not be negative")
	}
	if patch.State != nil && !patch.State.Valid() {
		return patch, domain.ErrInvalidState
	}
	return patch, nil
}

func (s *listingService) removeImages(ctx context.Context, listingID string, refs []string) {
	if s.images == nil {
		return
	}
	for _, ref := range refs {
		if err := s.images.Delete(ctx, ref); err != nil {
			s.logger.WithFields(logrus.Fields{
				"listing_id": listingID,
				"image":      ref,
			}).Warnf("remove image: %v", err)
		}
	}
}

func (s *listingService) sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidID
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) FavoriteAdded()   {}
func (nopRecorder) FavoriteRemoved() {}
