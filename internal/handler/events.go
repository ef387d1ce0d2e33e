package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aryan0dhankhar/expensehub/internal/domain"
	"github.com/aryan0dhankhar/expensehub/internal/events"
	"github.com/aryan0dhankhar/expensehub/internal/security/auth"
)

const (
	pingInterval = 15 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 5 * time.Second
)

// EventsHandler streams a tenant's expense events over a websocket
type EventsHandler struct {
	hub            *events.Hub
	tokens         *auth.TokenManager
	allowedOrigins []string
	logger         *slog.Logger
}

func NewEventsHandler(hub *events.Hub, tokens *auth.TokenManager, allowedOrigins []string, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		hub:            hub,
		tokens:         tokens,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

func (h *EventsHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if allowed == "*" || origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles GET /api/ws/expenses. Browsers cannot set headers on a
// websocket handshake, so the token may also come from ?token=.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := auth.ExtractBearer(r.Header.Get("Authorization"))
	if err != nil {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "not authorized, no token"})
		return
	}
	p, err := h.tokens.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "not authorized, token failed"})
		return
	}

	upgrader := h.upgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	stream, cancel := h.hub.Subscribe(p.CompanyID)
	defer cancel()

	h.logger.Debug("event stream opened",
		slog.String("company_id", p.CompanyID),
		slog.String("user_id", p.UserID),
	)

	if err := h.pump(ws, stream); err != nil {
		h.logger.Debug("event stream ended",
			slog.String("company_id", p.CompanyID),
			slog.String("reason", err.Error()),
		)
	}
}

// pump writes events until the client goes away. A reader goroutine handles
// control frames and notices the close.
func (h *EventsHandler) pump(ws *websocket.Conn, stream <-chan domain.ExpenseEvent) error {
	closed := make(chan error, 1)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				closed <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-stream:
			if !ok {
				return nil
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(event); err != nil {
				return err
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				return err
			}
		case err := <-closed:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return err
			}
			return nil
		}
	}
}
