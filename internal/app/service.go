package app

import (
	"github.com/jonboulle/clockwork"
	"github.com/renangcr/devProperties/internal/domain"
)

const defaultMaxImageBytes = 5 << 20

// Metrics receives listing lifecycle events.
type Metrics interface {
	ListingCreated()
	ListingDeleted()
	ImageUploaded(size int)
	ImageRejected()
}

type noopMetrics struct{}

func (noopMetrics) ListingCreated()   {}
func (noopMetrics) ListingDeleted()   {}
func (noopMetrics) ImageUploaded(int) {}
func (noopMetrics) ImageRejected()    {}

type Option func(*Service)

func WithMaxImageBytes(n int) Option {
	return func(s *Service) { s.maxImageBytes = n }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the application layer for listings and their images.
type Service struct {
	listings      domain.ListingRepository
	images        domain.ImageRepository
	clock         clockwork.Clock
	maxImageBytes int
	metrics       Metrics
}

func NewService(listings domain.ListingRepository, images domain.ImageRepository, clock clockwork.Clock, opts ...Option) *Service {
	s := &Service{
		listings:      listings,
		images:        images,
		clock:         clock,
		maxImageBytes: defaultMaxImageBytes,
		metrics:       noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
