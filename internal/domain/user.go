package domain

import "time"

// User represents a registered marketplace account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSummary is the public owner information attached to a listing.
type UserSummary struct {
	ID    string
	Name  string
	Phone string
}
