package http

import (
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bookmarket/internal/domain"
)

var registerOnce sync.Once

// registerValidators adds the listing_state rule to gin's validator.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("listing_state", func(fl validator.FieldLevel) bool {
			return domain.ListingState(fl.Field().String()).Valid()
		})
	})
}

// bindingError classifies a request binding failure as an invalid argument.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "listing_state" {
				return domain.ErrInvalidState
			}
		}
		fe := verrs[0]
		return domain.InvalidArgument("field %s failed %s validation", fe.Field(), fe.Tag())
	}
	return domain.InvalidArgument("malformed request: %v", err)
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createListingRequest struct {
	Name        string  `form:"name" json:"name" binding:"required"`
	Brand       string  `form:"brand" json:"brand" binding:"required"`
	Price       float64 `form:"price" json:"price" binding:"gte=0"`
	Category    string  `form:"category" json:"category" binding:"required"`
	Description string  `form:"description" json:"description" binding:"required"`
	State       string  `form:"state" json:"state" binding:"omitempty,listing_state"`
}

type editListingRequest struct {
	Name        *string  `form:"name" json:"name"`
	Brand       *string  `form:"brand" json:"brand"`
	Price       *float64 `form:"price" json:"price"`
	Category    *string  `form:"category" json:"category"`
	Description *string  `form:"description" json:"description"`
	State       *string  `form:"state" json:"state"`
}

func (r editListingRequest) toPatch() domain.ListingPatch {
	patch := domain.ListingPatch{
		Name:        r.Name,
		Brand:       r.Brand,
		Price:       r.Price,
		Category:    r.Category,
		Description: r.Description,
	}
	if r.State != nil {
		state := domain.ListingState(*r.State)
		patch.State = &state
	}
	return patch
}

type changeStateRequest struct {
	State string `form:"state" json:"state" binding:"required"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

type OwnerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ListingResponse struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	Owner       *OwnerResponse      `json:"owner,omitempty"`
	Name        string              `json:"name"`
	Brand       string              `json:"brand"`
	Price       float64             `json:"price"`
	Category    string              `json:"category"`
	Description string              `json:"description"`
	Images      []string            `json:"images"`
	Favorites   []string            `json:"favorites"`
	IsFav       bool                `json:"is_fav"`
	Favorited   *bool               `json:"favorited,omitempty"`
	State       domain.ListingState `json:"state"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// listingToResponse renders a listing. When viewer is known the response also
// says whether that user has favorited it.
func listingToResponse(listing domain.Listing, viewer string) ListingResponse {
	resp := ListingResponse{
		ID:          listing.ID,
		OwnerID:     listing.OwnerID,
		Name:        listing.Name,
		Brand:       listing.Brand,
		Price:       listing.Price,
		Category:    listing.Category,
		Description: listing.Description,
		Images:      listing.Images,
		Favorites:   listing.Favorites,
		IsFav:       listing.IsFav,
		State:       listing.State,
		CreatedAt:   listing.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   listing.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}
	if resp.Favorites == nil {
		resp.Favorites = []string{}
	}
	if listing.Owner != nil {
		resp.Owner = &OwnerResponse{
			ID:    listing.Owner.ID,
			Name:  listing.Owner.Name,
			Phone: listing.Owner.Phone,
		}
	}
	if viewer != "" {
		favorited := listing.FavoritedBy(viewer)
		resp.Favorited = &favorited
	}
	return resp
}

func listingsToResponse(listings []domain.Listing, viewer string) []ListingResponse {
	resp := make([]ListingResponse, len(listings))
	for i := range listings {
		resp[i] = listingToResponse(listings[i], viewer)
	}
	return resp
}
