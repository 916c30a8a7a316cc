package bridge

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"cueso/internal/driver"
	"cueso/internal/model"
	"cueso/internal/session"
	"cueso/internal/telemetry"
)

const closeCodeOriginNotAllowed = 4003

// Handler upgrades HTTP connections to the WebSocket session protocol and
// drives one driver.Run per client turn.
type Handler struct {
	Store         session.Store
	Driver        *driver.Driver
	DefaultConfig model.SessionConfig
	Logger        telemetry.Logger

	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
}

// New constructs a Handler. allowedOrigins, when non-empty, restricts
// upgrades to requests whose Origin header (case-insensitive) is listed;
// an empty list allows any origin.
func New(store session.Store, d *driver.Driver, cfg model.SessionConfig, logger telemetry.Logger, allowedOrigins []string) *Handler {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(o)] = true
	}
	return &Handler{
		Store:          store,
		Driver:         d,
		DefaultConfig:  cfg,
		Logger:         logger,
		allowedOrigins: allowed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin is checked after upgrade so a rejection can close with
			// the protocol-level 4003 code rather than a bare HTTP 403.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) originAllowed(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}
	return h.allowedOrigins[strings.ToLower(origin)]
}

// ServeHTTP upgrades the connection and services client turns until the
// client disconnects. Origin rejection closes with code 4003 after the
// upgrade completes, since a close frame cannot be sent before one
// (spec.md §6).
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	allowed := h.originAllowed(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !allowed {
		msg := websocket.FormatCloseMessage(closeCodeOriginNotAllowed, "origin not allowed")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	turns := make(chan incoming)
	go h.readPump(conn, cancel, turns)

	var writeMu sync.Mutex
	write := func(ev outgoing) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(ev)
	}

	for t := range turns {
		h.handleTurn(ctx, t, write)
	}
}

// readPump reads client turns off the wire. It owns the connection's read
// side for its lifetime; on any read error (including a client-initiated
// close) it cancels ctx, tearing down any in-flight run at its next
// suspension point, and closes turns.
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc, turns chan<- incoming) {
	defer close(turns)
	defer cancel()
	for {
		var t incoming
		if err := conn.ReadJSON(&t); err != nil {
			return
		}
		turns <- t
	}
}

func (h *Handler) handleTurn(ctx context.Context, t incoming, write func(outgoing) error) {
	if strings.TrimSpace(t.Message) == "" {
		_ = write(errorEvent("message must be non-empty"))
		return
	}

	id := ""
	if t.SessionID != nil {
		id = *t.SessionID
	}

	sess, err := h.Store.GetOrCreate(ctx, id, h.DefaultConfig)
	if err != nil {
		h.Logger.Error(ctx, "session resolution failed", "error", err)
		_ = write(errorEvent("session unavailable"))
		return
	}
	_ = write(sessionCreatedEvent(sess.ID))

	err = h.Store.WithLock(ctx, sess.ID, func(current session.Session) (session.Session, error) {
		run := h.Driver.Run(ctx, current, t.Message)
		for ev := range run.Events {
			if writeErr := write(translate(ev, sess.ID)); writeErr != nil {
				// Client is gone; keep draining so the run's goroutine can
				// finish and FinalSession reflects committed history.
				continue
			}
		}
		return run.FinalSession(), nil
	})
	if err != nil {
		h.Logger.Error(ctx, "session lock failed", "error", err)
		_ = write(errorEvent("session lock unavailable"))
	}
}
