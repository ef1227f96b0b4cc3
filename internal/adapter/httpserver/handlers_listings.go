package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

func (s *Server) registerListingRoutes() {
	s.page(http.MethodGet, "/", s.handleHome)
	s.page(http.MethodGet, "/busca", s.handleSearchForm)
	s.page(http.MethodGet, "/busca/:search", s.handleSearch)
	s.page(http.MethodGet, "/modalidade/:modality", s.handleModality)
	s.page(http.MethodGet, "/imovel/:id", s.handleDetail)
}

func (s *Server) handleHome(c echo.Context) error {
	listings, err := s.listings.Latest(c.Request().Context(), s.config.ListingsOnHome)
	if err != nil {
		return fmt.Errorf("failed to load latest listings: %w", err)
	}

	data := s.pageData(c, authstate.Public, s.currentState(c))
	data["Listings"] = listings
	return s.renderTemplate(c, "home.html", data)
}

// handleSearchForm turns the search box submission into the canonical search URL.
func (s *Server) handleSearchForm(c echo.Context) error {
	term := strings.TrimSpace(c.QueryParam("q"))
	if term == "" {
		return redirect(c, "/")
	}
	return redirect(c, "/busca/"+url.PathEscape(term))
}

func (s *Server) handleSearch(c echo.Context) error {
	term, err := pathParam(c, "search")
	if err != nil {
		return apperrors.ValidationError("Termo de busca inválido")
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return redirect(c, "/")
	}

	listings, err := s.listings.Search(c.Request().Context(), term)
	if err != nil {
		return fmt.Errorf("failed to search listings: %w", err)
	}

	data := s.pageData(c, authstate.Public, s.currentState(c))
	data["Term"] = term
	data["Heading"] = "Resultados para " + term
	data["Listings"] = listings
	return s.renderTemplate(c, "search.html", data)
}

func (s *Server) handleModality(c echo.Context) error {
	raw, err := pathParam(c, "modality")
	if err != nil {
		return apperrors.NotFoundError("Modalidade não encontrada")
	}
	modality := domain.Modality(raw)
	if !modality.Valid() {
		return apperrors.NotFoundError("Modalidade não encontrada")
	}

	listings, err := s.listings.ByModality(c.Request().Context(), modality)
	if err != nil {
		return fmt.Errorf("failed to load listings by modality: %w", err)
	}

	data := s.pageData(c, authstate.Public, s.currentState(c))
	data["Heading"] = "Imóveis para " + string(modality)
	data["Listings"] = listings
	return s.renderTemplate(c, "search.html", data)
}

// pathParam decodes a route parameter exactly once. Echo matches on the raw
// path only when it differs from the decoded one (an escaped "/", say);
// otherwise the parameter is already decoded.
func pathParam(c echo.Context, name string) (string, error) {
	value := c.Param(name)
	if c.Request().URL.RawPath == "" {
		return value, nil
	}
	return url.PathUnescape(value)
}

func (s *Server) handleDetail(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.NotFoundError("Imóvel não encontrado")
	}

	ctx := c.Request().Context()
	listing, err := s.listings.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load listing: %w", err)
	}

	suggestion, err := s.listings.Suggest(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load suggestion: %w", err)
	}

	data := s.pageData(c, authstate.Public, s.currentState(c))
	data["Listing"] = listing
	data["Suggestion"] = suggestion
	return s.renderTemplate(c, "detail.html", data)
}

func (s *Server) handleImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.NotFoundError("Imagem não encontrada")
	}

	img, err := s.listings.Image(c.Request().Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	// Image IDs are never reused, so the bytes behind a URL never change.
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if err := c.Blob(http.StatusOK, img.ContentType, img.Data); err != nil {
		return fmt.Errorf("failed to send image: %w", err)
	}
	return nil
}
