// Package transport owns the websocket connection to the event stream:
// connect, deliver frames in order, detect failure, and reconnect after a
// fixed delay, forever. Connection failure is an expected condition here,
// never a fatal one.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"accountwatch/internal/alerts"
	"accountwatch/internal/logger"

	"github.com/fasthttp/websocket"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// FrameHandler receives each frame in the order it arrived. The engine
// implements it.
type FrameHandler interface {
	HandleFrame(raw []byte)
}

// Conn is the subset of a websocket connection the manager reads from.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

type Dialer interface {
	Dial(url string) (Conn, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Manager is the connection state machine. A single goroutine owns Run,
// so at most one connection attempt is live at any moment.
type Manager struct {
	url      string
	delay    time.Duration
	dialer   Dialer
	handler  FrameHandler
	notifier alerts.Notifier
	log      logger.Logger

	mu       sync.RWMutex
	state    State
	attempts int
}

func New(url string, delay time.Duration, handler FrameHandler, notifier alerts.Notifier) *Manager {
	return &Manager{
		url:      url,
		delay:    delay,
		dialer:   websocketDialer{},
		handler:  handler,
		notifier: notifier,
		log:      logger.New("transport"),
		state:    StateDisconnected,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Attempts returns the number of connection attempts made so far.
func (m *Manager) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// Run drives the connection until ctx is cancelled. It never returns an
// error: every failure path ends in a delay-then-retry transition.
func (m *Manager) Run(ctx context.Context) {
	log := m.log.Function("Run")

	for {
		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}

		if m.Attempts() == 0 {
			m.setState(StateConnecting)
		} else {
			m.setState(StateReconnecting)
		}
		m.countAttempt()

		conn, err := m.dialer.Dial(m.url)
		if err != nil {
			log.Warn("Connection attempt failed", "url", m.url, "error", err, "attempts", m.Attempts())
			m.notifier.Notify("Could not connect to event stream", alerts.SeverityError)
			if !m.waitForRetry(ctx) {
				m.setState(StateDisconnected)
				return
			}
			continue
		}

		m.setState(StateConnected)
		log.Info("Connected to event stream", "url", m.url)
		m.notifier.Notify("Connected to event stream", alerts.SeveritySuccess)

		m.readFrames(ctx, conn)

		if ctx.Err() != nil {
			m.setState(StateDisconnected)
			return
		}

		log.Warn("Event stream closed, scheduling reconnect", "delay", m.delay)
		m.notifier.Notify("Event stream disconnected, reconnecting", alerts.SeverityWarning)
		if !m.waitForRetry(ctx) {
			m.setState(StateDisconnected)
			return
		}
	}
}

// readFrames delivers frames in arrival order until the connection fails
// or ctx is cancelled. A clean close and an error close both return here;
// the caller treats them the same way.
func (m *Manager) readFrames(ctx context.Context, conn Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		m.handler.HandleFrame(data)
	}
}

// waitForRetry blocks for the fixed reconnect delay. Returns false when
// ctx was cancelled while waiting.
func (m *Manager) waitForRetry(ctx context.Context) bool {
	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) setState(state State) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

func (m *Manager) countAttempt() {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
}
