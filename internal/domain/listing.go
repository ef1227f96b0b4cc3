package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Modality string

const (
	ModalitySale   Modality = "Venda"
	ModalityRental Modality = "Locação"
)

func (m Modality) Valid() bool {
	return m == ModalitySale || m == ModalityRental
}

type Listing struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	Title        string
	Bedrooms     int
	Suites       int
	Bathrooms    int
	Parking      int
	BuildingArea int
	TotalArea    int
	WhatsApp     string
	City         string
	Recreation   string
	Description  string
	PriceCents   int64
	Modality     Modality
	Images       []ImageRef
	CreatedAt    time.Time
}

// Cover returns the first image, which list views show as the thumbnail.
func (l *Listing) Cover() (ImageRef, bool) {
	if len(l.Images) == 0 {
		return ImageRef{}, false
	}
	return l.Images[0], true
}

// ImageRef identifies a stored image without carrying its bytes.
type ImageRef struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	ContentType string
}

type Image struct {
	ImageRef
	ListingID *uuid.UUID
	Data      []byte
	CreatedAt time.Time
}

type ListingFilter struct {
	OwnerID       *uuid.UUID
	Modality      Modality
	TitleContains string
	Limit         int
}

type ListingRepository interface {
	// Create inserts the listing and attaches the given draft images to it atomically.
	Create(ctx context.Context, listing *Listing, imageIDs []uuid.UUID) error
	Get(ctx context.Context, listingID uuid.UUID) (*Listing, error)
	// List returns matching listings, newest first.
	List(ctx context.Context, filter ListingFilter) ([]*Listing, error)
	Delete(ctx context.Context, listingID uuid.UUID) error
	RandomExcept(ctx context.Context, listingID uuid.UUID) (*Listing, error)
}

type ImageRepository interface {
	Save(ctx context.Context, image *Image) error
	Get(ctx context.Context, imageID uuid.UUID) (*Image, error)
	Drafts(ctx context.Context, ownerID uuid.UUID) ([]ImageRef, error)
	DeleteDraft(ctx context.Context, ownerID, imageID uuid.UUID) error
}
