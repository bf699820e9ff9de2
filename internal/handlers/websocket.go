package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peercall/signaling/internal/identity"
	"github.com/peercall/signaling/internal/models"
	"github.com/peercall/signaling/internal/redis"
	"github.com/peercall/signaling/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 256
)

// Handler wires the websocket transport to the relay core.
type Handler struct {
	Relay     *relay.Relay
	JWTSecret string
}

func NewHandler(r *relay.Relay, jwtSecret string) *Handler {
	return &Handler{Relay: r, JWTSecret: jwtSecret}
}

// Client is one websocket transport session. Outbound traffic goes through a
// bounded channel so the relay never blocks on a slow connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	send chan []byte
	log  zerolog.Logger
}

// Close implements relay.Sender; the relay calls it when the sweeper evicts
// this endpoint. Closing the connection unwinds readPump, whose cleanup is a
// no-op for an id the registry already dropped.
func (c *Client) Close() error {
	return c.Conn.Close()
}

// Send implements relay.Sender. It never blocks; a full buffer drops the
// message and reports false.
func (c *Client) Send(msg models.SignalMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to marshal message")
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// HandleSignaling upgrades the connection, assigns the endpoint id, pushes it
// to the client as your-id and registers the endpoint with the relay.
func (h *Handler) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	endpointID := uuid.New().String()
	client := &Client{
		ID:   endpointID,
		Conn: conn,
		send: make(chan []byte, sendBuffer),
		log:  log.With().Str("endpoint_id", endpointID).Logger(),
	}

	if err := h.Relay.Join(endpointID, client); err != nil {
		client.log.Error().Err(err).Msg("Rejecting connection")
		conn.Close()
		return
	}
	redis.MirrorJoin(endpointID)

	go client.writePump()
	go client.readPump(h)
}

func (c *Client) readPump(h *Handler) {
	defer func() {
		h.Relay.Leave(c.ID)
		redis.MirrorLeave(c.ID)
		c.Conn.Close()
		c.log.Info().Msg("Client disconnected")
	}()

	c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		// Pongs are implicit keepalives: a client answering pings must
		// never be swept as silent.
		h.Relay.Touch(c.ID)
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Error().Err(err).Msg("Unexpected close error")
			}
			break
		}

		var msg models.SignalMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn().Err(err).Msg("Failed to parse message")
			continue
		}

		// Any inbound frame counts as liveness.
		h.Relay.Touch(c.ID)
		h.dispatch(c, msg)
	}
}

func (h *Handler) dispatch(c *Client, msg models.SignalMessage) {
	switch msg.Type {
	case models.SignalTypeSetInfo:
		h.handleSetInfo(c, msg)

	case models.SignalTypeCallRequest:
		if err := h.Relay.RequestCall(c.ID, msg.To, msg.Payload); err != nil {
			if errors.Is(err, relay.ErrUnknownEndpoint) || errors.Is(err, relay.ErrSelfCall) {
				c.Send(models.SignalMessage{
					Type:  models.SignalTypeUnavailable,
					To:    msg.To,
					Error: err.Error(),
				})
			}
			c.log.Debug().Err(err).Str("target_id", msg.To).Msg("Call request failed")
		}

	case models.SignalTypeCallAccept:
		if err := h.Relay.AcceptCall(c.ID, msg.To, msg.Payload); err != nil {
			// Usually a race with a cancelled call; nothing to surface.
			c.log.Debug().Err(err).Str("target_id", msg.To).Msg("Call accept dropped")
		}

	case models.SignalTypeCallEnd:
		h.Relay.EndCall(c.ID)

	default:
		c.log.Warn().Str("type", string(msg.Type)).Msg("Unknown message type")
	}
}

func (h *Handler) handleSetInfo(c *Client, msg models.SignalMessage) {
	var info models.SetInfoPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &info); err != nil {
			c.log.Warn().Err(err).Msg("Failed to parse set-info payload")
			return
		}
	}

	externalIdentity := ""
	if info.Token != "" {
		id, err := identity.Verify(h.JWTSecret, info.Token)
		if err != nil {
			c.log.Warn().Err(err).Msg("Rejected identity token")
		} else {
			externalIdentity = id
		}
	}

	appliedName, appliedIdentity := h.Relay.SetInfo(c.ID, info.DisplayName, externalIdentity)
	redis.MirrorInfo(c.ID, appliedName, appliedIdentity)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
