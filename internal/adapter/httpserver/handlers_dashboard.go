package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/renangcr/devProperties/internal/app"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

// multipart overhead allowed on top of the image itself
const uploadOverhead = 64 << 10

func (s *Server) registerDashboardRoutes() {
	s.page(http.MethodGet, "/dashboard", s.handleDashboard, s.requireAuth)
	s.page(http.MethodPost, "/dashboard/listings/:id/delete", s.handleDeleteListing, s.requireAuth)
	s.page(http.MethodGet, "/dashboard/novo", s.handleNewListingPage, s.requireAuth)
	s.page(http.MethodPost, "/dashboard/novo", s.handleCreateListing, s.requireAuth)
	// The upload form carries its CSRF token in the query so nothing reads the
	// multipart body before the size limit applies.
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(s.config.MaxImageBytes+uploadOverhead, 10))
	s.echo.POST("/dashboard/images", s.handleUploadImage,
		s.clientMiddleware, s.uploadCSRF, s.requireAuth, s.uploadTooLarge, uploadLimit)
	s.page(http.MethodPost, "/dashboard/images/:id/delete", s.handleDeleteImage, s.requireAuth)
}

func (s *Server) handleDashboard(c echo.Context) error {
	listings, err := s.listings.ListOwn(c.Request().Context(), userID(c))
	if err != nil {
		return fmt.Errorf("failed to load own listings: %w", err)
	}

	data := s.pageData(c, authstate.Protected, s.currentState(c))
	data["Listings"] = listings
	return s.renderTemplate(c, "dashboard.html", data)
}

func (s *Server) handleDeleteListing(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.NotFoundError("Imóvel não encontrado")
	}
	if err := s.listings.DeleteListing(c.Request().Context(), userID(c), id); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return redirect(c, authstate.DashboardPath)
}

func (s *Server) handleNewListingPage(c echo.Context) error {
	return s.renderNewListing(c, http.StatusOK, app.ListingInput{Modality: domain.ModalitySale}, "")
}

func (s *Server) handleCreateListing(c echo.Context) error {
	in := listingInputFromForm(c)

	_, err := s.listings.CreateListing(c.Request().Context(), userID(c), in)
	if flash, ok := formError(err); ok {
		return s.renderNewListing(c, http.StatusBadRequest, in, flash)
	}
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return redirect(c, authstate.DashboardPath)
}

func (s *Server) handleUploadImage(c echo.Context) error {
	file, err := c.FormFile("image")
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return err
	}
	if err != nil {
		return s.renderNewListing(c, http.StatusBadRequest, app.ListingInput{Modality: domain.ModalitySale}, "Escolha uma imagem para enviar")
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	// One extra byte lets the service see an oversized file.
	data, err := io.ReadAll(io.LimitReader(src, s.config.MaxImageBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	_, err = s.listings.UploadImage(c.Request().Context(), userID(c), file.Header.Get(echo.HeaderContentType), data)
	if flash, ok := formError(err); ok {
		return s.renderNewListing(c, http.StatusBadRequest, app.ListingInput{Modality: domain.ModalitySale}, flash)
	}
	if err != nil {
		return fmt.Errorf("failed to upload image: %w", err)
	}
	return redirect(c, "/dashboard/novo")
}

// uploadTooLarge shows an oversized upload on the form, like any other rejected image.
func (s *Server) uploadTooLarge(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			flash, _ := formError(domain.ErrImageTooLarge)
			return s.renderNewListing(c, http.StatusRequestEntityTooLarge, app.ListingInput{Modality: domain.ModalitySale}, flash)
		}
		return err
	}
}

func (s *Server) handleDeleteImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.NotFoundError("Imagem não encontrada")
	}
	if err := s.listings.DeleteDraftImage(c.Request().Context(), userID(c), id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return redirect(c, "/dashboard/novo")
}

func (s *Server) renderNewListing(c echo.Context, status int, in app.ListingInput, flash string) error {
	drafts, err := s.listings.DraftImages(c.Request().Context(), userID(c))
	if err != nil {
		return fmt.Errorf("failed to load draft images: %w", err)
	}

	data := s.pageData(c, authstate.Protected, s.currentState(c))
	data["Form"] = in
	data["Drafts"] = drafts
	data["Flash"] = flash
	return s.renderTemplateStatus(c, status, "new.html", data)
}

func listingInputFromForm(c echo.Context) app.ListingInput {
	number := func(name string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(c.FormValue(name)))
		return n
	}
	return app.ListingInput{
		Title:        c.FormValue("title"),
		Bedrooms:     number("bedrooms"),
		Suites:       number("suites"),
		Bathrooms:    number("bathrooms"),
		Parking:      number("parking"),
		BuildingArea: number("building_area"),
		TotalArea:    number("total_area"),
		WhatsApp:     c.FormValue("whatsapp"),
		City:         c.FormValue("city"),
		Recreation:   c.FormValue("recreation"),
		Description:  c.FormValue("description"),
		Price:        c.FormValue("price"),
		Modality:     domain.Modality(c.FormValue("modality")),
	}
}

// formError reports whether err should be shown next to the form rather than
// on the error page, and the message to show.
func formError(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	structured, ok := errors.AsType[*apperrors.Error](fromDomain(err))
	if !ok || structured.Type != apperrors.TypeValidation {
		return "", false
	}
	return structured.Message, true
}
