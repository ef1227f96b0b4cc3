package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/renangcr/devProperties/internal/domain"
)

type ImageRepo struct {
	pool *pgxpool.Pool
}

var _ domain.ImageRepository = (*ImageRepo)(nil)

func NewImageRepo(pool *pgxpool.Pool) *ImageRepo {
	return &ImageRepo{pool: pool}
}

func (r *ImageRepo) Save(ctx context.Context, image *domain.Image) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO listing_images (id, owner_id, listing_id, content_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		image.ID, image.OwnerID, image.ListingID, image.ContentType, image.Data, image.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert image: %w", err)
	}
	return nil
}

func (r *ImageRepo) Get(ctx context.Context, imageID uuid.UUID) (*domain.Image, error) {
	var img domain.Image
	err := r.pool.QueryRow(ctx, `SELECT id, owner_id, listing_id, content_type, data, created_at
		FROM listing_images WHERE id = $1`, imageID).
		Scan(&img.ID, &img.OwnerID, &img.ListingID, &img.ContentType, &img.Data, &img.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

// Drafts lists the owner's images not yet attached to a listing, oldest first.
func (r *ImageRepo) Drafts(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, owner_id, content_type FROM listing_images
		WHERE owner_id = $1 AND listing_id IS NULL ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft images: %w", err)
	}

	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ImageRef, error) {
		var ref domain.ImageRef
		err := row.Scan(&ref.ID, &ref.OwnerID, &ref.ContentType)
		return ref, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan draft images: %w", err)
	}
	return refs, nil
}

func (r *ImageRepo) DeleteDraft(ctx context.Context, ownerID, imageID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM listing_images WHERE id = $1 AND owner_id = $2 AND listing_id IS NULL`,
		imageID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete draft image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}
