package metrics

import "github.com/prometheus/client_golang/prometheus"

// ListingMetrics counts listing and image lifecycle events.
type ListingMetrics struct {
	ListingsCreated prometheus.Counter
	ListingsDeleted prometheus.Counter
	ImageUploads    *prometheus.CounterVec
	ImageBytes      prometheus.Histogram
}

// NewListingMetrics creates and registers listing metrics on the given registry.
func NewListingMetrics(reg prometheus.Registerer) *ListingMetrics {
	m := &ListingMetrics{
		ListingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "created_total",
			Help:      "Total number of listings created.",
		}),
		ListingsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "deleted_total",
			Help:      "Total number of listings deleted.",
		}),
		ImageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "image_uploads_total",
			Help:      "Total number of image uploads, by result.",
		}, []string{"result"}),
		ImageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "listings",
			Name:      "image_upload_bytes",
			Help:      "Size of accepted image uploads in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 4, 6),
		}),
	}

	reg.MustRegister(m.ListingsCreated, m.ListingsDeleted, m.ImageUploads, m.ImageBytes)
	return m
}

func (m *ListingMetrics) ListingCreated() { m.ListingsCreated.Inc() }

func (m *ListingMetrics) ListingDeleted() { m.ListingsDeleted.Inc() }

func (m *ListingMetrics) ImageUploaded(size int) {
	m.ImageUploads.WithLabelValues("accepted").Inc()
	m.ImageBytes.Observe(float64(size))
}

func (m *ListingMetrics) ImageRejected() {
	m.ImageUploads.WithLabelValues("rejected").Inc()
}
