package stream

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/chargesim/core/logger"
	"github.com/kilianp07/chargesim/core/model"
)

const clientBuffer = 64

// Lister returns the saved simulations sent to new clients.
type Lister interface {
	List(ctx context.Context) ([]model.Simulation, error)
}

// Handler upgrades requests to WebSocket connections fed by a Hub.
type Handler struct {
	hub      *Hub
	lister   Lister
	token    string
	upgrader websocket.Upgrader
	log      logger.Logger
}

// Options configures a Handler.
type Options struct {
	// AllowedOrigin restricts the Origin header. Empty or "*" accepts any.
	AllowedOrigin string
	// Token requires "Authorization: Bearer <token>" or a token query
	// parameter, since browsers cannot set headers on a WebSocket handshake.
	Token  string
	Logger logger.Logger
}

// NewHandler builds a Handler. lister may be nil to skip the initial
// snapshot.
func NewHandler(hub *Hub, lister Lister, opts Options) *Handler {
	return &Handler{
		hub:    hub,
		lister: lister,
		token:  opts.Token,
		log:    logger.OrNop(opts.Logger),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if opts.AllowedOrigin == "" || opts.AllowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == opts.AllowedOrigin
			},
		},
	}
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	if r.Header.Get("Authorization") == "Bearer "+h.token {
		return true
	}
	return r.URL.Query().Get("token") == h.token
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade error: %v", err)
		return
	}
	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, clientBuffer)}
	var snapshot func() ([]byte, error)
	if h.lister != nil {
		snapshot = func() ([]byte, error) {
			sims, err := h.lister.List(r.Context())
			if err != nil {
				return nil, err
			}
			return NewEnvelope(TypeSnapshot, sims)
		}
	}
	if err := h.hub.RegisterWith(client, snapshot); err != nil {
		h.log.Errorf("snapshot: %v", err)
	}
	go client.writePump()
	h.readPump(client)
}

// readPump drains client frames until the connection closes. Clients are
// receive only.
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warnf("websocket read error: %v", err)
			}
			return
		}
	}
}
