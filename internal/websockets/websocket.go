// Package websockets broadcasts the processing event stream to every
// connected status client. Clients are passive readers: anything they
// send is discarded, a disconnect just unregisters them.
package websockets

import (
	"time"

	"accountwatch/internal/events"
	"accountwatch/internal/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	PING_INTERVAL     = 30 * time.Second
	PONG_TIMEOUT      = 60 * time.Second
	WRITE_TIMEOUT     = 10 * time.Second
	MAX_MESSAGE_SIZE  = 64 * 1024
	SEND_CHANNEL_SIZE = 256
)

type Client struct {
	ID         string
	Connection *websocket.Conn
	Manager    *Manager
	send       chan events.Frame
}

type Manager struct {
	hub *Hub
	log logger.Logger
}

func New() *Manager {
	log := logger.New("websockets")

	manager := &Manager{
		hub: &Hub{
			broadcast:  make(chan events.Frame, SEND_CHANNEL_SIZE),
			register:   make(chan *Client),
			unregister: make(chan *Client),
			clients:    make(map[string]*Client),
		},
		log: log,
	}

	log.Function("New").Info("Starting websocket hub")
	go manager.hub.run(manager)

	return manager
}

// HandleWebSocket owns one client connection for its lifetime.
func (m *Manager) HandleWebSocket(c *websocket.Conn) {
	log := m.log.Function("HandleWebSocket")
	clientID := uuid.New().String()

	client := &Client{
		ID:         clientID,
		Connection: c,
		Manager:    m,
		send:       make(chan events.Frame, SEND_CHANNEL_SIZE),
	}

	log.Info("Client connected", "clientID", clientID)
	m.hub.register <- client
	defer func() {
		m.hub.unregister <- client
		if err := c.Close(); err != nil {
			log.Er("failed to close connection", err, "clientID", clientID)
		}
	}()

	go client.readPump()
	client.writePump()
}

// Broadcast queues an event frame for every connected client.
func (m *Manager) Broadcast(frame events.Frame) {
	select {
	case m.hub.broadcast <- frame:
	default:
		m.log.Warn("Broadcast channel full, dropping frame", "type", string(frame.Type))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	return m.hub.clientCount()
}

// readPump drains inbound messages so pings are answered and disconnects
// are noticed; clients have nothing meaningful to say.
func (c *Client) readPump() {
	log := c.Manager.log.Function("readPump")
	defer func() {
		c.Manager.hub.unregister <- c
		_ = c.Connection.Close()
	}()

	c.Connection.SetReadLimit(MAX_MESSAGE_SIZE)
	if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
		log.Er("failed to set read deadline", err, "clientID", c.ID)
	}
	c.Connection.SetPongHandler(func(string) error {
		if err := c.Connection.SetReadDeadline(time.Now().Add(PONG_TIMEOUT)); err != nil {
			log.Er("failed to set read deadline in pong handler", err, "clientID", c.ID)
		}
		return nil
	})

	for {
		if _, _, err := c.Connection.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				log.Er("unexpected close", err, "clientID", c.ID)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	log := c.Manager.log.Function("writePump")

	ticker := time.NewTicker(PING_INTERVAL)
	defer func() {
		ticker.Stop()
		_ = c.Connection.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline", err, "clientID", c.ID)
			}
			if !ok {
				_ = c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Connection.WriteJSON(frame); err != nil {
				log.Er("websocket write failed", err, "clientID", c.ID)
				return
			}

		case <-ticker.C:
			if err := c.Connection.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT)); err != nil {
				log.Er("failed to set write deadline for ping", err, "clientID", c.ID)
			}
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
