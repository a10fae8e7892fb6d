package domain

import (
	"slices"
	"time"
)

type ListingState string

const (
	ListingStateForSale  ListingState = "For sale"
	ListingStateReserved ListingState = "Reserved"
	ListingStateSold     ListingState = "Sold"
)

// ListingStates lists the closed set of states a listing may be in.
var ListingStates = []ListingState{
	ListingStateForSale,
	ListingStateReserved,
	ListingStateSold,
}

// Valid reports whether s is one of ListingStates.
func (s ListingState) Valid() bool {
	return slices.Contains(ListingStates, s)
}

// ParseListingState converts raw input into a ListingState.
func ParseListingState(raw string) (ListingState, error) {
	state := ListingState(raw)
	if !state.Valid() {
		return "", ErrInvalidState
	}
	return state, nil
}

// Listing is a book offered on the marketplace.
type Listing struct {
	ID          string
	OwnerID     string
	Name        string
	Brand       string
	Price       float64
	Category    string
	Description string
	Images      []string
	Favorites   []string
	// IsFav records whether the most recent favorite operation on the listing was an add.
	IsFav     bool
	State     ListingState
	CreatedAt time.Time
	UpdatedAt time.Time

	// Owner is only populated on single listing reads.
	Owner *UserSummary
}

// FavoritedBy reports whether userID is in the listing's favorites set.
func (l *Listing) FavoritedBy(userID string) bool {
	return userID != "" && slices.Contains(l.Favorites, userID)
}

// ListingPatch carries a partial update. Nil fields are left unchanged.
type ListingPatch struct {
	Name        *string
	Brand       *string
	Price       *float64
	Category    *string
	Description *string
	Images      []string
	State       *ListingState
}

// Empty reports whether the patch changes nothing.
func (p ListingPatch) Empty() bool {
	return p.Name == nil && p.Brand == nil && p.Price == nil && p.Category == nil &&
		p.Description == nil && p.Images == nil && p.State == nil
}
