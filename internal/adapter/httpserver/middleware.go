package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/domain"
	"github.com/renangcr/devProperties/internal/platform/correlation"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.Accept(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// ErrorHandlingMiddleware turns handler errors into an error page, or into a
// JSON body for clients that asked for JSON.
func (s *Server) ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if httpErr, ok := errors.AsType[*echo.HTTPError](err); ok {
				if wantsJSON(c) {
					return err
				}
				return s.renderError(c, httpErr.Code, WrapHTTPError(httpErr))
			}

			structuredErr := apperrors.AsStructuredError(fromDomain(err))
			logError(c, structuredErr)

			if wantsJSON(c) {
				if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
					return fmt.Errorf("failed to write error response: %w", err)
				}
				return nil
			}
			return s.renderError(c, structuredErr.HTTPStatus(), structuredErr)
		}
	}
}

func wantsJSON(c echo.Context) bool {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, "/health/") || path == "/version" {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func (s *Server) renderError(c echo.Context, status int, err *apperrors.Error) error {
	message := err.Message
	if status >= http.StatusInternalServerError && err.Type != apperrors.TypeUnavailable {
		message = "Algo deu errado. Tente novamente mais tarde."
	}
	return s.renderTemplateStatus(c, status, "error.html", map[string]any{
		"Status":  status,
		"Message": message,
	})
}

// fromDomain maps domain sentinels onto structured errors with user-facing messages.
func fromDomain(err error) error {
	if _, ok := errors.AsType[*apperrors.Error](err); ok {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrListingNotFound):
		return apperrors.NotFoundError("Imóvel não encontrado")
	case errors.Is(err, domain.ErrImageNotFound):
		return apperrors.NotFoundError("Imagem não encontrada")
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperrors.NotFoundError("Conta não encontrada")
	case errors.Is(err, domain.ErrForbidden):
		return apperrors.ForbiddenError("Você não pode alterar este imóvel")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.UnauthorizedError("E-mail ou senha inválidos")
	case errors.Is(err, domain.ErrEmailTaken):
		return apperrors.ConflictError("Este e-mail já está cadastrado")
	case errors.Is(err, domain.ErrNoImages):
		return apperrors.ValidationError("Envie pelo menos uma imagem do imóvel")
	case errors.Is(err, domain.ErrUnsupportedImage):
		return apperrors.ValidationError("Envie uma imagem jpeg ou png")
	case errors.Is(err, domain.ErrImageTooLarge):
		return apperrors.ValidationError("A imagem é grande demais")
	case errors.Is(err, authstate.ErrRegistryClosed):
		return apperrors.UnavailableError("Servidor reiniciando, tente novamente", err)
	default:
		return err
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	if userID := c.Get(ctxKeyUserID); userID != nil {
		attrs = append(attrs, "user_id", userID)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeUnauthorized, apperrors.TypeForbidden:
		slog.InfoContext(ctx, "Access denied", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.WarnContext(ctx, "Unavailable", attrs...)
	case apperrors.TypeInternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	case apperrors.TypeExternal:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "External service error", attrs...)
	default:
		slog.ErrorContext(ctx, "Unknown error type", attrs...)
	}
}

func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := http.StatusText(httpErr.Code)
	if httpErr.Message != nil {
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusUnauthorized:
		errType = apperrors.TypeUnauthorized
	case http.StatusForbidden:
		errType = apperrors.TypeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		errType = apperrors.TypeNotFound
	case http.StatusConflict:
		errType = apperrors.TypeConflict
	case http.StatusServiceUnavailable:
		errType = apperrors.TypeUnavailable
	case http.StatusBadGateway:
		errType = apperrors.TypeExternal
	default:
		errType = apperrors.TypeInternal
	}

	err := &apperrors.Error{
		Type:    errType,
		Message: message,
		Context: make(map[string]any),
	}

	if httpErr.Internal != nil {
		err.Cause = httpErr.Internal
	}

	return err
}
