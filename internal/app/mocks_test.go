package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/domain"
)

type mockListingRepo struct {
	createFn       func(ctx context.Context, listing *domain.Listing, imageIDs []uuid.UUID) error
	getFn          func(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
	listFn         func(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, error)
	deleteFn       func(ctx context.Context, listingID uuid.UUID) error
	randomExceptFn func(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
}

func (m *mockListingRepo) Create(ctx context.Context, listing *domain.Listing, imageIDs []uuid.UUID) error {
	if m.createFn != nil {
		return m.createFn(ctx, listing, imageIDs)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockListingRepo) Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, listingID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockListingRepo) List(ctx context.Context, filter domain.ListingFilter) ([]*domain.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockListingRepo) Delete(ctx context.Context, listingID uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, listingID)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockListingRepo) RandomExcept(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	if m.randomExceptFn != nil {
		return m.randomExceptFn(ctx, listingID)
	}
	return nil, fmt.Errorf("not implemented")
}

type mockImageRepo struct {
	saveFn        func(ctx context.Context, image *domain.Image) error
	getFn         func(ctx context.Context, imageID uuid.UUID) (*domain.Image, error)
	draftsFn      func(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error)
	deleteDraftFn func(ctx context.Context, ownerID, imageID uuid.UUID) error
}

func (m *mockImageRepo) Save(ctx context.Context, image *domain.Image) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, image)
	}
	return fmt.Errorf("not implemented")
}

func (m *mockImageRepo) Get(ctx context.Context, imageID uuid.UUID) (*domain.Image, error) {
	if m.getFn != nil {
		return m.getFn(ctx, imageID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockImageRepo) Drafts(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error) {
	if m.draftsFn != nil {
		return m.draftsFn(ctx, ownerID)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockImageRepo) DeleteDraft(ctx context.Context, ownerID, imageID uuid.UUID) error {
	if m.deleteDraftFn != nil {
		return m.deleteDraftFn(ctx, ownerID, imageID)
	}
	return fmt.Errorf("not implemented")
}

type countingMetrics struct {
	created, deleted, uploaded, rejected int
}

func (m *countingMetrics) ListingCreated()   { m.created++ }
func (m *countingMetrics) ListingDeleted()   { m.deleted++ }
func (m *countingMetrics) ImageUploaded(int) { m.uploaded++ }
func (m *countingMetrics) ImageRejected()    { m.rejected++ }
