package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/renangcr/devProperties/internal/adapter/websocket"
)

// handleSessionWatch keeps an open page in step with the browser's auth state.
// A protected page that loses its session is told to go to the login page.
func (s *Server) handleSessionWatch(c echo.Context) error {
	inst, err := s.instance(c)
	if err != nil {
		return err
	}

	access := websocket.ParseAccess(c.QueryParam("access"))
	if err := s.watch.Serve(c.Response(), c.Request(), inst, access); err != nil {
		slog.DebugContext(c.Request().Context(), "Session watch not established", "client_id", inst.ClientID(), "error", err)
	}
	return nil
}
