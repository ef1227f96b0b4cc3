package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/domain"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

const maxTitleLen = 120

// ListingInput is the owner-supplied part of a new listing, as typed in the form.
type ListingInput struct {
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
	Price        string
	Modality     domain.Modality
}

func invalid(field, message string) *apperrors.Error {
	return apperrors.ValidationError(message).WithField("field", field)
}

// validate returns the normalized listing fields or the first invalid field.
func (in ListingInput) validate() (*domain.Listing, error) {
	title := strings.ToUpper(strings.TrimSpace(in.Title))
	if title == "" {
		return nil, invalid("title", "O título é obrigatório")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return nil, invalid("title", "O título é muito longo")
	}

	counts := map[string]int{
		"bedrooms":      in.Bedrooms,
		"suites":        in.Suites,
		"bathrooms":     in.Bathrooms,
		"parking":       in.Parking,
		"building_area": in.BuildingArea,
		"total_area":    in.TotalArea,
	}
	for field, v := range counts {
		if v < 0 {
			return nil, invalid(field, "Valores numéricos não podem ser negativos")
		}
	}

	whatsapp := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		if r == ' ' || r == '-' || r == '(' || r == ')' || r == '+' {
			return -1
		}
		return 'x'
	}, in.WhatsApp)
	if strings.ContainsRune(whatsapp, 'x') || len(whatsapp) < 11 || len(whatsapp) > 12 {
		return nil, invalid("whatsapp", "Informe um WhatsApp com DDD (11 ou 12 dígitos)")
	}

	city := strings.TrimSpace(in.City)
	if city == "" {
		return nil, invalid("city", "A cidade é obrigatória")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, invalid("description", "A descrição é obrigatória")
	}

	price, err := ParsePrice(in.Price)
	if err != nil {
		return nil, invalid("price", "Informe um preço válido")
	}
	if !in.Modality.Valid() {
		return nil, invalid("modality", "Escolha Venda ou Locação")
	}

	return &domain.Listing{
		Title:        title,
		Bedrooms:     in.Bedrooms,
		Suites:       in.Suites,
		Bathrooms:    in.Bathrooms,
		Parking:      in.Parking,
		BuildingArea: in.BuildingArea,
		TotalArea:    in.TotalArea,
		WhatsApp:     whatsapp,
		City:         city,
		Recreation:   strings.TrimSpace(in.Recreation),
		Description:  description,
		PriceCents:   price,
		Modality:     in.Modality,
	}, nil
}

// CreateListing publishes a listing with every draft image the owner has
// uploaded. At least one draft image is required.
func (s *Service) CreateListing(ctx context.Context, ownerID uuid.UUID, in ListingInput) (*domain.Listing, error) {
	listing, err := in.validate()
	if err != nil {
		return nil, err
	}

	drafts, err := s.images.Drafts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, domain.ErrNoImages
	}

	listing.ID = uuid.New()
	listing.OwnerID = ownerID
	listing.CreatedAt = s.clock.Now()
	listing.Images = drafts

	imageIDs := make([]uuid.UUID, len(drafts))
	for i, d := range drafts {
		imageIDs[i] = d.ID
	}
	if err := s.listings.Create(ctx, listing, imageIDs); err != nil {
		return nil, err
	}

	s.metrics.ListingCreated()
	slog.InfoContext(ctx, "Listing created", "listing_id", listing.ID, "owner_id", ownerID, "images", len(imageIDs))
	return listing, nil
}

func (s *Service) ListOwn(ctx context.Context, ownerID uuid.UUID) ([]*domain.Listing, error) {
	return s.listings.List(ctx, domain.ListingFilter{OwnerID: &ownerID})
}

// DeleteListing removes a listing and its images. Only the owner may do so.
func (s *Service) DeleteListing(ctx context.Context, ownerID, listingID uuid.UUID) error {
	listing, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	if err := s.listings.Delete(ctx, listingID); err != nil {
		return err
	}

	s.metrics.ListingDeleted()
	slog.InfoContext(ctx, "Listing deleted", "listing_id", listingID, "owner_id", ownerID)
	return nil
}

func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.Listing, error) {
	return s.listings.List(ctx, domain.ListingFilter{Limit: limit})
}

// Search matches the term against titles, which are stored upper-cased.
// A blank term matches nothing.
func (s *Service) Search(ctx context.Context, term string) ([]*domain.Listing, error) {
	term = strings.ToUpper(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	return s.listings.List(ctx, domain.ListingFilter{TitleContains: term})
}

func (s *Service) ByModality(ctx context.Context, modality domain.Modality) ([]*domain.Listing, error) {
	if !modality.Valid() {
		return nil, invalid("modality", "Modalidade desconhecida")
	}
	return s.listings.List(ctx, domain.ListingFilter{Modality: modality})
}

func (s *Service) Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error) {
	return s.listings.Get(ctx, listingID)
}

// Suggest picks another listing to show next to a detail page. It returns
// nil when there is none.
func (s *Service) Suggest(ctx context.Context, excludeID uuid.UUID) (*domain.Listing, error) {
	listing, err := s.listings.RandomExcept(ctx, excludeID)
	if errors.Is(err, domain.ErrListingNotFound) {
		return nil, nil
	}
	return listing, err
}
