package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/renangcr/devProperties/internal/authstate"
	"github.com/renangcr/devProperties/internal/platform/config"
	apperrors "github.com/renangcr/devProperties/internal/platform/errors"
)

// Cookie and context keys
const (
	clientCookieName = "devproperties-client"
	clientKeyID      = "client_id"

	ctxKeyClientID = "clientID"
	ctxKeyState    = "authState"
	ctxKeyUserID   = "userID"
)

func setupClientStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// clientMiddleware gives every browser a stable client ID. The ID names the
// auth-state instance that follows this browser's sign-in state.
func (s *Server) clientMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// Get returns a fresh session alongside a decode error, e.g. after a secret rotation.
		sess, err := s.clientStore.Get(c.Request(), clientCookieName)
		if err != nil {
			slog.DebugContext(c.Request().Context(), "Discarding unreadable client cookie", "error", err)
		}

		id, _ := sess.Values[clientKeyID].(string)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			if err := s.saveClientID(c, sess, id); err != nil {
				return err
			}
		}

		c.Set(ctxKeyClientID, id)
		return next(c)
	}
}

// rotateClientID moves the browser onto a fresh client ID. Called before
// binding an identity so a planted cookie cannot observe the new session.
func (s *Server) rotateClientID(c echo.Context) (string, error) {
	sess, _ := s.clientStore.Get(c.Request(), clientCookieName)
	id := uuid.NewString()
	if err := s.saveClientID(c, sess, id); err != nil {
		return "", err
	}
	c.Set(ctxKeyClientID, id)
	return id, nil
}

func (s *Server) saveClientID(c echo.Context, sess *sessions.Session, id string) error {
	sess.Values[clientKeyID] = id
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return apperrors.InternalError("failed to save client cookie", err)
	}
	return nil
}

func clientID(c echo.Context) string {
	id, _ := c.Get(ctxKeyClientID).(string)
	return id
}

// instance returns the auth-state instance of the requesting browser.
func (s *Server) instance(c echo.Context) (*authstate.Instance, error) {
	id := clientID(c)
	if id == "" {
		return nil, apperrors.InternalError("client id missing from request", nil)
	}
	inst, err := s.sessions.Get(c.Request().Context(), id)
	if err != nil {
		return nil, apperrors.UnavailableError("Não foi possível carregar sua sessão", fmt.Errorf("auth state for client %s: %w", id, err))
	}
	return inst, nil
}

// currentState reads the browser's auth state without waiting for it.
// A lookup failure renders like an unresolved session.
func (s *Server) currentState(c echo.Context) authstate.State {
	if st, ok := c.Get(ctxKeyState).(authstate.State); ok {
		return st
	}
	inst, err := s.instance(c)
	if err != nil {
		slog.WarnContext(c.Request().Context(), "Auth state unavailable", "error", err)
		return authstate.State{Resolving: true}
	}
	return inst.Read()
}

// pageData holds the values every page template expects.
func (s *Server) pageData(c echo.Context, access authstate.Access, st authstate.State) map[string]any {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return map[string]any{
		"Auth":      st,
		"Access":    access,
		"CSRFToken": token,
	}
}
