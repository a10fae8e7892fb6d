package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bookmarket/internal/auth"
	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
	"bookmarket/internal/repository/sqlite"
)

type fakeImages struct {
	mu         sync.Mutex
	deleted    []string
	failDelete bool
}

func (f *fakeImages) Save(_ context.Context, filename string, _ io.Reader) (string, error) {
	return "upload/" + filename, nil
}

func (f *fakeImages) Delete(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("bucket unavailable")
	}
	f.deleted = append(f.deleted, ref)
	return nil
}

type countingRecorder struct {
	added, removed atomic.Int32
}

func (c *countingRecorder) FavoriteAdded()   { c.added.Add(1) }
func (c *countingRecorder) FavoriteRemoved() { c.removed.Add(1) }

type fixture struct {
	users    repository.UserRepository
	listings repository.ListingRepository
	tokens   auth.TokenService
	userSvc  UserService
	svc      ListingService
	images   *fakeImages
	recorder *countingRecorder
	logHook  *logtest.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "bookmarket.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	users := sqlite.NewUserRepository(db)
	listings := sqlite.NewListingRepository(db)
	require.NoError(t, users.Init(ctx))
	require.NoError(t, listings.Init(ctx))

	tokens, err := auth.NewTokenService("service-test-secret-long-enough", time.Hour)
	require.NoError(t, err)

	userSvc := NewUserService(users, tokens).(*userService)
	userSvc.cost = bcrypt.MinCost

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	images := &fakeImages{}
	recorder := &countingRecorder{}

	return &fixture{
		users:    users,
		listings: listings,
		tokens:   tokens,
		userSvc:  userSvc,
		svc:      NewListingService(listings, images, logger, recorder),
		images:   images,
		recorder: recorder,
		logHook:  hook,
	}
}

func (f *fixture) user(t *testing.T, email string) *domain.User {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) listing(t *testing.T, ownerID, name string) *domain.Listing {
	t.Helper()
	listing, err := f.svc.Create(context.Background(), ownerID, CreateListingInput{
		Name:        name,
		Brand:       "Penguin",
		Price:       10,
		Category:    "fiction",
		Description: "like new",
		Images:      []string{"upload/" + name + ".jpg"},
	})
	require.NoError(t, err)
	return listing
}
