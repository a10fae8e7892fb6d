package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "nested", "bookmarket.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepos(t *testing.T) (repository.UserRepository, repository.ListingRepository) {
	t.Helper()

	db := newTestDB(t)
	users := NewUserRepository(db)
	listings := NewListingRepository(db)
	require.NoError(t, users.Init(context.Background()))
	require.NoError(t, listings.Init(context.Background()))
	return users, listings
}

func createUser(t *testing.T, users repository.UserRepository, email string) *domain.User {
	t.Helper()

	user := &domain.User{Name: "user " + email, Email: email, PasswordHash: "hash", Phone: "+998900000000"}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}
