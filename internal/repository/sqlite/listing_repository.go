package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookmarket/internal/domain"
	"bookmarket/internal/repository"
)

var createListingTables = []string{`
CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	brand TEXT NOT NULL,
	price REAL NOT NULL DEFAULT 0,
	category TEXT NOT NULL,
	description TEXT NOT NULL,
	is_fav INTEGER NOT NULL DEFAULT 0,
	state TEXT NOT NULL DEFAULT 'For sale' CHECK (state IN ('For sale', 'Reserved', 'Sold')),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_listings_created ON listings(created_at);`,
	`
CREATE TABLE IF NOT EXISTS listing_images (
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	path TEXT NOT NULL,
	PRIMARY KEY (listing_id, position)
);`,
	`
CREATE TABLE IF NOT EXISTS listing_favorites (
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (listing_id, user_id)
);`,
	`CREATE INDEX IF NOT EXISTS idx_listing_favorites_user ON listing_favorites(user_id);`,
}

const listingColumns = `l.id, l.owner_id, l.name, l.brand, l.price, l.category, l.description, l.is_fav, l.state, l.created_at, l.updated_at`

type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) repository.ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) Init(ctx context.Context) error {
	if err := execAll(ctx, r.db, createListingTables...); err != nil {
		return fmt.Errorf("create listing tables: %w", err)
	}
	return nil
}

// Create inserts the listing and its images. CreatedAt is kept when already set.
func (r *ListingRepository) Create(ctx context.Context, listing *domain.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.NewString()
	}
	if listing.State == "" {
		listing.State = domain.ListingStateForSale
	}
	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = listing.CreatedAt
	listing.Favorites = []string{}
	listing.IsFav = false

	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO listings (id, owner_id, name, brand, price, category, description, is_fav, state, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			listing.ID,
			listing.OwnerID,
			listing.Name,
			listing.Brand,
			listing.Price,
			listing.Category,
			listing.Description,
			listing.IsFav,
			string(listing.State),
			listing.CreatedAt,
			listing.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return replaceImages(ctx, tx, listing.ID, listing.Images)
	})
}

func (r *ListingRepository) Get(ctx context.Context, id string) (*domain.Listing, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+listingColumns+`, u.name, u.phone
FROM listings l
LEFT JOIN users u ON u.id = l.owner_id
WHERE l.id = ?`,
		id,
	)

	var ownerName, ownerPhone sql.NullString
	listing, err := scanListing(row, &ownerName, &ownerPhone)
	if err != nil {
		return nil, err
	}
	if ownerName.Valid {
		listing.Owner = &domain.UserSummary{
			ID:    listing.OwnerID,
			Name:  ownerName.String,
			Phone: ownerPhone.String,
		}
	}

	if err := r.loadRelations(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// Find returns listings matching filter, newest first.
func (r *ListingRepository) Find(ctx context.Context, filter repository.ListingFilter) ([]domain.Listing, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "l.owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.FavoritedBy != "" {
		where = append(where, "EXISTS (SELECT 1 FROM listing_favorites f WHERE f.listing_id = l.id AND f.user_id = ?)")
		args = append(args, filter.FavoritedBy)
	}
	if filter.NameContains != "" {
		where = append(where, "instr(lower(l.name), lower(?)) > 0")
		args = append(args, filter.NameContains)
	}

	query := "SELECT " + listingColumns + " FROM listings l"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY l.created_at DESC, l.rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}

	listings := []domain.Listing{}
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		listings = append(listings, *listing)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	// the single connection must be released before loading relations
	rows.Close()

	for i := range listings {
		if err := r.loadRelations(ctx, &listings[i]); err != nil {
			return nil, err
		}
	}
	return listings, nil
}

func (r *ListingRepository) Update(ctx context.Context, id string, patch domain.ListingPatch) (*domain.Listing, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Brand != nil {
		sets = append(sets, "brand = ?")
		args = append(args, *patch.Brand)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *patch.Price)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.State != nil {
		sets = append(sets, "state = ?")
		args = append(args, string(*patch.State))
	}
	args = append(args, id)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE listings SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return fmt.Errorf("update listing: %w", err)
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		if patch.Images != nil {
			return replaceImages(ctx, tx, id, patch.Images)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_favorites WHERE listing_id = ?`, id); err != nil {
			return fmt.Errorf("delete listing favorites: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = ?`, id); err != nil {
			return fmt.Errorf("delete listing images: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		return expectOneRow(res)
	})
}

// AddFavorite inserts userID into the favorites set only if absent and marks
// the listing as favorited. It reports false when userID was already present.
func (r *ListingRepository) AddFavorite(ctx context.Context, id, userID string) (bool, error) {
	var added bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := listingExists(ctx, tx, id); err != nil {
			return err
		}
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
INSERT INTO listing_favorites (listing_id, user_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (listing_id, user_id) DO NOTHING`,
			id, userID, now,
		)
		if err != nil {
			return fmt.Errorf("insert favorite: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("favorite rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		added = true
		if _, err := tx.ExecContext(ctx, `UPDATE listings SET is_fav = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("mark favorite: %w", err)
		}
		return nil
	})
	return added, err
}

// RemoveFavorite deletes userID from the favorites set only if present and
// clears the favorited flag. It reports false when userID was not present.
func (r *ListingRepository) RemoveFavorite(ctx context.Context, id, userID string) (bool, error) {
	var removed bool
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := listingExists(ctx, tx, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM listing_favorites WHERE listing_id = ? AND user_id = ?`, id, userID)
		if err != nil {
			return fmt.Errorf("delete favorite: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("favorite rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		removed = true
		if _, err := tx.ExecContext(ctx, `UPDATE listings SET is_fav = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), id); err != nil {
			return fmt.Errorf("unmark favorite: %w", err)
		}
		return nil
	})
	return removed, err
}

func (r *ListingRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *ListingRepository) loadRelations(ctx context.Context, listing *domain.Listing) error {
	images, err := r.queryStrings(ctx, `SELECT path FROM listing_images WHERE listing_id = ? ORDER BY position`, listing.ID)
	if err != nil {
		return fmt.Errorf("load listing images: %w", err)
	}
	favorites, err := r.queryStrings(ctx, `SELECT user_id FROM listing_favorites WHERE listing_id = ? ORDER BY created_at, rowid`, listing.ID)
	if err != nil {
		return fmt.Errorf("load listing favorites: %w", err)
	}
	listing.Images = images
	listing.Favorites = favorites
	return nil
}

func (r *ListingRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func replaceImages(ctx context.Context, tx *sql.Tx, listingID string, images []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = ?`, listingID); err != nil {
		return fmt.Errorf("clear listing images: %w", err)
	}
	for i, path := range images {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO listing_images (listing_id, position, path)
VALUES (?, ?, ?)`,
			listingID, i, path,
		); err != nil {
			return fmt.Errorf("insert listing image: %w", err)
		}
	}
	return nil
}

func listingExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrListingNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup listing: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func scanListing(row scanner, extra ...any) (*domain.Listing, error) {
	var (
		listing domain.Listing
		state   string
	)
	dest := []any{
		&listing.ID,
		&listing.OwnerID,
		&listing.Name,
		&listing.Brand,
		&listing.Price,
		&listing.Category,
		&listing.Description,
		&listing.IsFav,
		&state,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrListingNotFound
		}
		return nil, fmt.Errorf("scan listing: %w", err)
	}
	listing.State = domain.ListingState(state)
	return &listing, nil
}
