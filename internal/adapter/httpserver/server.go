package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/renangcr/devProperties/internal/adapter/metrics"
	"github.com/renangcr/devProperties/internal/adapter/websocket"
	"github.com/renangcr/devProperties/internal/app"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	"github.com/renangcr/devProperties/internal/platform/config"
	"github.com/renangcr/devProperties/web"
)

type listingService interface {
	UploadImage(ctx context.Context, ownerID uuid.UUID, contentType string, data []byte) (domain.ImageRef, error)
	DeleteDraftImage(ctx context.Context, ownerID, imageID uuid.UUID) error
	DraftImages(ctx context.Context, ownerID uuid.UUID) ([]domain.ImageRef, error)
	Image(ctx context.Context, imageID uuid.UUID) (*domain.Image, error)
	CreateListing(ctx context.Context, ownerID uuid.UUID, in app.ListingInput) (*domain.Listing, error)
	ListOwn(ctx context.Context, ownerID uuid.UUID) ([]*domain.Listing, error)
	DeleteListing(ctx context.Context, ownerID, listingID uuid.UUID) error
	Latest(ctx context.Context, limit int) ([]*domain.Listing, error)
	Search(ctx context.Context, term string) ([]*domain.Listing, error)
	ByModality(ctx context.Context, modality domain.Modality) ([]*domain.Listing, error)
	Get(ctx context.Context, listingID uuid.UUID) (*domain.Listing, error)
	Suggest(ctx context.Context, excludeID uuid.UUID) (*domain.Listing, error)
}

type identityService interface {
	SignIn(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error)
	CreateAccount(ctx context.Context, clientID, email, password string) (*domain.AuthUser, error)
	UpdateProfile(ctx context.Context, clientID, uid, displayName string) error
	SignOut(ctx context.Context, clientID string) error
}

// sessionRegistry hands out the auth-state instance of a browser client.
type sessionRegistry interface {
	Get(ctx context.Context, clientID string) (*authstate.Instance, error)
	Len() int
	Closed() bool
}

type guardObserver interface {
	GuardDecision(access authstate.Access, decision authstate.Decision)
}

type noopGuardObserver struct{}

func (noopGuardObserver) GuardDecision(authstate.Access, authstate.Decision) {}

type Option func(*Server)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithPrometheus records HTTP and session watch metrics on reg and serves it at /metrics.
func WithPrometheus(reg *prometheus.Registry) Option {
	return func(s *Server) { s.promRegistry = reg }
}

func WithGuardObserver(o guardObserver) Option {
	return func(s *Server) { s.guardObserver = o }
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	listings listingService
	identity identityService
	sessions sessionRegistry

	templates    *template.Template
	clientStore  *sessions.CookieStore
	watch        *websocket.Handler
	csrf         echo.MiddlewareFunc
	uploadCSRF   echo.MiddlewareFunc
	healthChecks []HealthCheck

	clock         clockwork.Clock
	promRegistry  *prometheus.Registry
	guardObserver guardObserver
	startTime     time.Time
}

func NewServer(cfg *config.Config, listings listingService, identity identityService, registry sessionRegistry, healthChecks []HealthCheck, opts ...Option) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:          e,
		config:        cfg,
		listings:      listings,
		identity:      identity,
		sessions:      registry,
		templates:     templates,
		clientStore:   setupClientStore(cfg),
		healthChecks:  healthChecks,
		clock:         clockwork.NewRealClock(),
		guardObserver: noopGuardObserver{},
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.startTime = srv.clock.Now()
	srv.watch = srv.newWatchHandler()

	srv.registerRoutes()

	return srv, nil
}

func (s *Server) newWatchHandler() *websocket.Handler {
	opts := []websocket.Option{websocket.WithClock(s.clock)}
	if s.promRegistry != nil {
		opts = append(opts, websocket.WithObserver(newWatchMetrics(metrics.NewWebSocketMetrics(s.promRegistry))))
	}
	checkOrigin := websocket.NewCheckOrigin(s.config.AppURL, !s.config.IsProduction())
	return websocket.NewHandler(checkOrigin, opts...)
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown ends open session watches first; hijacked sockets are not tracked by echo.
func (s *Server) Shutdown(ctx context.Context) error {
	s.watch.Close()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"price": app.FormatPrice,
		"cover": func(l *domain.Listing) *domain.ImageRef {
			if ref, ok := l.Cover(); ok {
				return &ref
			}
			return nil
		},
	}
	templates, err := template.New("").Funcs(funcs).ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return templates, nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	return s.renderTemplateStatus(c, http.StatusOK, name, data)
}

func (s *Server) renderTemplateStatus(c echo.Context, status int, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "path", c.Request().URL.Path, "template", name, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(status, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

// watchMetrics adapts the prometheus collectors to websocket.Observer.
type watchMetrics struct {
	m *metrics.WebSocketMetrics
}

func newWatchMetrics(m *metrics.WebSocketMetrics) watchMetrics {
	return watchMetrics{m: m}
}

func (w watchMetrics) Opened() { w.m.ActiveConnections.Inc() }
func (w watchMetrics) Closed() { w.m.ActiveConnections.Dec() }
func (w watchMetrics) Sent()   { w.m.MessagesPublished.Inc() }
