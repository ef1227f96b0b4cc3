package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/renangcr/devProperties/internal/domain"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// UploadImage stores a draft image for the owner's next listing. The declared
// content type must be JPEG or PNG and agree with the sniffed bytes.
func (s *Service) UploadImage(ctx context.Context, ownerID uuid.UUID, contentType string, data []byte) (domain.ImageRef, error) {
	if len(data) > s.maxImageBytes {
		s.metrics.ImageRejected()
		return domain.ImageRef{}, fmt.Errorf("%d bytes exceeds %d: %w", len(data), s.maxImageBytes, domain.ErrImageTooLarge)
	}
	if !allowedImageTypes[contentType] || http.DetectContentType(data) != contentType {
		s.metrics.ImageRejected()
		return domain.ImageRef{}, fmt.Errorf("declared %q: %w", contentType, domain.ErrUnsupportedImage)
	}

	img := &domain.Image{
		ImageRef: domain.ImageRef{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			ContentType: contentType,
		},
		Data:      data,
		CreatedAt: s.clock.Now(),
	}
	if err := s.images.Save(ctx, img); err != nil {
		return domain.ImageRef{}, err
	}

	s.metrics.ImageUploaded(len(data))
	slog.InfoContext(ctx, "Draft image uploaded", "owner_id", ownerID, "image_id", img.ID, "bytes", len(data))
	return img.ImageRef, nil
}

func (s *Service) DeleteDraftImage(ctx context.Context, ownerID, imageID uuid.UUID) error {
	return s.images.DeleteDraft(ctx, ownerID, imageID)
}

func (s *Service) DraftImages(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error) {
	return s.images.Drafts(ctx, ownerID)
}

func (s *Service) Image(ctx context.Context, imageID uuid.UUID) (*domain.Image, error) {
	return s.images.Get(ctx, imageID)
}
