package websocket

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/renangcr/devProperties/internal/authstate"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
	readLimit     = 512
)

// Message is pushed whenever what the page should show changes.
// A non-empty Location tells the page to navigate away; the socket closes after it.
type Message struct {
	Resolving   bool            `json:"resolving"`
	Signed      bool            `json:"signed"`
	DisplayName string          `json:"display_name,omitempty"`
	Phase       authstate.Phase `json:"phase,omitempty"`
	Location    string          `json:"location,omitempty"`
}

// Source is the slice of an auth-state store a watch needs.
type Source interface {
	Read() authstate.State
	Watch() (<-chan struct{}, func())
}

// Observer receives connection lifecycle events, typically for metrics.
type Observer interface {
	Opened()
	Closed()
	Sent()
}

type noopObserver struct{}

func (noopObserver) Opened() {}
func (noopObserver) Closed() {}
func (noopObserver) Sent()   {}

type Option func(*Handler)

func WithClock(clock clockwork.Clock) Option {
	return func(h *Handler) { h.clock = clock }
}

func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// Handler upgrades session watch requests and serves them until the browser
// leaves, the watch reaches a redirect, or Close is called.
type Handler struct {
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	observer Observer

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	conns   sync.WaitGroup
}

func NewHandler(checkOrigin func(*http.Request) bool, opts ...Option) *Handler {
	h := &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clock:    clockwork.NewRealClock(),
		observer: noopObserver{},
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve upgrades the connection and streams messages derived from src for a
// page of the given access level. It returns once the connection is done.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, src Source, access authstate.Access) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already wrote the HTTP error response.
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	defer func() { _ = conn.Close() }()

	s := &session{
		conn:    conn,
		clock:   h.clock,
		tracker: newTracker(access),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.writeClose(websocket.CloseGoingAway, "server shutting down")
		return nil
	}
	h.conns.Add(1)
	h.mu.Unlock()
	defer h.conns.Done()

	h.observer.Opened()
	defer h.observer.Closed()

	s.run(src, h.closing, h.observer)
	return nil
}

// Close makes every open watch send a close frame and waits for them to end.
func (h *Handler) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.closing)
	}
	h.mu.Unlock()
	h.conns.Wait()
}

type session struct {
	conn    *websocket.Conn
	clock   clockwork.Clock
	tracker *tracker
}

func (s *session) run(src Source, closing <-chan struct{}, observer Observer) {
	changes, cancel := src.Watch()
	defer cancel()

	gone := s.readUntilGone()

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	var last *Message
	for {
		msg, final := s.tracker.next(src.Read())
		if last == nil || *last != msg {
			if err := s.writeJSON(msg); err != nil {
				return
			}
			observer.Sent()
			last = &msg
		}
		if final {
			s.writeClose(websocket.CloseNormalClosure, "redirect")
			return
		}

		select {
		case <-changes:
		case <-ticker.Chan():
			s.updateWriteDeadline()
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-closing:
			s.writeClose(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// readUntilGone drains inbound frames so pongs and close frames are handled.
// The returned channel closes when the browser disconnects.
func (s *session) readUntilGone() <-chan struct{} {
	gone := make(chan struct{})
	s.conn.SetReadLimit(readLimit)
	s.updateReadDeadline()
	s.conn.SetPongHandler(func(string) error {
		s.updateReadDeadline()
		return nil
	})

	go func() {
		defer close(gone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}

func (s *session) writeJSON(msg Message) error {
	s.updateWriteDeadline()
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write session message: %w", err)
	}
	return nil
}

func (s *session) writeClose(code int, reason string) {
	s.updateWriteDeadline()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

func (s *session) updateWriteDeadline() {
	_ = s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline))
}

func (s *session) updateReadDeadline() {
	_ = s.conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
}

// tracker turns store snapshots into messages for one page.
type tracker struct {
	access authstate.Access
	gate   *authstate.Gate
}

func newTracker(access authstate.Access) *tracker {
	return &tracker{access: access, gate: authstate.NewGate()}
}

// next returns the message for st and whether it ends the watch.
func (t *tracker) next(st authstate.State) (Message, bool) {
	msg := Message{Resolving: st.Resolving, Signed: st.Signed()}
	if u, ok := st.User(); ok {
		msg.DisplayName = u.DisplayName
	}

	switch t.access {
	case authstate.Protected:
		phase, _ := t.gate.Observe(st)
		msg.Phase = phase
		if phase == authstate.PhaseRedirecting {
			msg.Location = authstate.LoginPath
			return msg, true
		}
	case authstate.GuestOnly:
		if d := authstate.Decide(st, authstate.GuestOnly); d == authstate.RedirectToDashboard {
			msg.Location = d.Location()
			return msg, true
		}
	}
	return msg, false
}

// ParseAccess maps the access name a page sends back onto an Access level.
// Unknown names are treated as public.
func ParseAccess(name string) authstate.Access {
	switch name {
	case authstate.Protected.String():
		return authstate.Protected
	case authstate.GuestOnly.String():
		return authstate.GuestOnly
	default:
		return authstate.Public
	}
}
