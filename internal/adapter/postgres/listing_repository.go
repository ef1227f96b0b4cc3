package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/renangcr/devProperties/internal/domain"
)

// listingColumns must match the Scan order in scanListing.
const listingColumns = `id, owner_id, title, bedrooms, suites, bathrooms, parking, building_area, total_area,
	whatsapp, city, recreation, description, price_cents, modality, created_at`

type ListingRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

func NewListingRepo(pool *pgxpool.Pool) *ListingRepo {
	return &ListingRepo{pool: pool}
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var modality string
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &l.Bedrooms, &l.Suites, &l.Bathrooms, &l.Parking,
		&l.BuildingArea, &l.TotalArea, &l.WhatsApp, &l.City, &l.Recreation, &l.Description,
		&l.PriceCents, &modality, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Modality = domain.Modality(modality)
	return &l, nil
}

// Create inserts the listing and claims the owner's draft images in one
// transaction. Any image that is missing, foreign or already attached aborts it.
func (r *ListingRepo) Create(ctx context.Context, listing *domain.Listing, imageIDs []uuid.UUID) error {
	if len(imageIDs) == 0 {
		return domain.ErrNoImages
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		listing.ID, listing.OwnerID, listing.Title, listing.Bedrooms, listing.Suites, listing.Bathrooms,
		listing.Parking, listing.BuildingArea, listing.TotalArea, listing.WhatsApp, listing.City,
		listing.Recreation, listing.Description, listing.PriceCents, string(listing.Modality), listing.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE listing_images SET listing_id = $1
		WHERE id = ANY($2) AND owner_id = $3 AND listing_id IS NULL`,
		listing.ID, imageIDs, listing.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to attach images: %w", err)
	}
	if tag.RowsAffected() != int64(len(imageIDs)) {
		return fmt.Errorf("attached %d of %d images: %w", tag.RowsAffected(), len(imageIDs), domain.ErrImageNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, listingID)
	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}

	if err := r.attachImages(ctx, []*domain.Listing{listing}); err != nil {
		return nil, err
	}
	return listing, nil
}

func (r *ListingRepo) List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != nil {
		where = append(where, "owner_id = "+arg(*filter.OwnerID))
	}
	if filter.Modality != "" {
		where = append(where, "modality = "+arg(string(filter.Modality)))
	}
	if filter.TitleContains != "" {
		// strpos avoids escaping LIKE wildcards in user input.
		where = append(where, "strpos(title, "+arg(filter.TitleContains)+") > 0")
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	listings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Listing, error) {
		return scanListing(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan listings: %w", err)
	}

	if err := r.attachImages(ctx, listings); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *ListingRepo) Delete(ctx context.Context, listingID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *ListingRepo) RandomExcept(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id <> $1 ORDER BY random() LIMIT 1`, listingID)
	listing, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick random listing: %w", err)
	}

	if err := r.attachImages(ctx, []*domain.Listing{listing}); err != nil {
		return nil, err
	}
	return listing, nil
}

// attachImages loads image refs for all listings with one query.
func (r *ListingRepo) attachImages(ctx context.Context, listings []*domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(listings))
	byID := make(map[uuid.UUID]*domain.Listing, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
		byID[l.ID] = l
	}

	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, content_type, listing_id FROM listing_images
		WHERE listing_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return fmt.Errorf("failed to load listing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref domain.ImageRef
		var listingID uuid.UUID
		if err := rows.Scan(&ref.ID, &ref.OwnerID, &ref.ContentType, &listingID); err != nil {
			return fmt.Errorf("failed to scan listing image: %w", err)
		}
		if l, ok := byID[listingID]; ok {
			l.Images = append(l.Images, ref)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate listing images: %w", err)
	}
	return nil
}
