package websockets

import (
	"sync"

	"accountwatch/internal/events"
)

type Hub struct {
	broadcast  chan events.Frame
	register   chan *Client
	unregister chan *Client
	clients    map[string]*Client
	mutex      sync.RWMutex
}

func (h *Hub) run(m *Manager) {
	for {
		select {
		case client := <-h.register:
			m.registerClient(client)

		case client := <-h.unregister:
			func() {
				defer func() {
					_ = recover() // send channel may already be closed
				}()
				close(client.send)
			}()
			m.unregisterClient(client)

		case frame := <-h.broadcast:
			h.broadcastFrame(frame, m)
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (m *Manager) registerClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	m.hub.clients[client.ID] = client
	m.log.Info("Client registered", "clientID", client.ID, "clients", len(m.hub.clients))
}

func (m *Manager) unregisterClient(client *Client) {
	m.hub.mutex.Lock()
	defer m.hub.mutex.Unlock()

	delete(m.hub.clients, client.ID)
	m.log.Info("Client unregistered", "clientID", client.ID, "clients", len(m.hub.clients))
}

func (h *Hub) broadcastFrame(frame events.Frame, m *Manager) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	for clientID, client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// A full send buffer means the client stopped reading;
			// drop it rather than stall the stream for everyone else.
			m.log.Warn("Client too slow, disconnecting", "clientID", clientID)
			go func(c *Client) {
				m.hub.unregister <- c
			}(client)
		}
	}
}
