package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"market-chat/internal/domain"
	"market-chat/internal/events"
	chat_errors "market-chat/pkg/errors"
	"market-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Options control the channel lifecycle. Defaults mirror the production
// client: bounded reconnection with a fixed delay and a dial watchdog.
type Options struct {
	DialTimeout          time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	PingInterval         time.Duration
	WriteTimeout         time.Duration
	ReadTimeout          time.Duration
}

func DefaultOptions() Options {
	return Options{
		DialTimeout:          10 * time.Second,
		ReconnectDelay:       time.Second,
		MaxReconnectAttempts: 5,
		PingInterval:         30 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
	}
}

// Manager owns the live bidirectional channel: connecting, reconnecting up
// to the attempt cap, room join on connect, and serialized outbound writes.
// It is the only component that opens or closes the connection; everything
// else reads State and emits application envelopes through it.
type Manager struct {
	id     string
	wsURL  string
	userID int
	opts   Options
	log    *logger.Logger

	mu    sync.RWMutex
	state domain.ConnState
	conn  *websocket.Conn

	send      chan events.Envelope
	events    chan events.Envelope
	closed    chan struct{}
	closeOnce sync.Once
}

// NewManager builds a manager for the given HTTP base URL. The websocket
// endpoint is derived by swapping the scheme and appending /ws.
func NewManager(serverURL string, userID int, opts Options, log *logger.Logger) (*Manager, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	return &Manager{
		id:     uuid.New().String(),
		wsURL:  u.String(),
		userID: userID,
		opts:   opts,
		log:    log,
		state:  domain.StateDisconnected,
		send:   make(chan events.Envelope, 256),
		events: make(chan events.Envelope, 256),
		closed: make(chan struct{}),
	}, nil
}

// Events delivers inbound application events and the synthetic transport
// events (connect, connect_error, disconnect, reconnect, reconnect_failed).
func (m *Manager) Events() <-chan events.Envelope {
	return m.events
}

func (m *Manager) State() domain.ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Emit queues an application envelope for sending. It never blocks; sends
// while the channel is down or the queue is full are rejected.
func (m *Manager) Emit(env events.Envelope) error {
	if m.State() != domain.StateConnected {
		return chat_errors.ErrNotConnected
	}
	select {
	case m.send <- env:
		return nil
	default:
		return fmt.Errorf("emit %s: send queue full", env.Event)
	}
}

// Run drives the connection lifecycle until ctx is cancelled, Close is
// called, or the reconnect attempts are exhausted.
func (m *Manager) Run(ctx context.Context) error {
	attempts := 0
	wasConnected := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.closed:
			return nil
		default:
		}

		if attempts == 0 && !wasConnected {
			m.setState(domain.StateConnecting)
		} else {
			m.setState(domain.StateReconnecting)
			if attempts > 0 {
				m.deliver(events.EventReconnect, events.ReconnectPayload{Attempt: attempts})
			}
		}

		conn, err := m.dial(ctx)
		if err != nil {
			attempts++
			m.deliver(events.EventConnectError, events.ErrorPayload{Message: describeDialError(err)})
			if attempts >= m.opts.MaxReconnectAttempts {
				m.setState(domain.StateFailed)
				m.deliver(events.EventReconnectFailed, events.ErrorPayload{
					Message: "Connection failed. Please reload to try again.",
				})
				return chat_errors.ErrReconnectExhausted
			}
			select {
			case <-time.After(m.opts.ReconnectDelay):
			case <-ctx.Done():
				return ctx.Err()
			case <-m.closed:
				return nil
			}
			continue
		}

		attempts = 0
		wasConnected = true
		m.setConn(conn)
		m.setState(domain.StateConnected)

		// Join the personal room before anything else travels the wire.
		join, _ := events.NewEnvelope(events.EventJoin, events.JoinPayload{UserID: m.userID})
		m.send <- join
		m.deliver(events.EventConnect, nil)

		writeCtx, cancelWrite := context.WithCancel(ctx)
		go m.writeLoop(writeCtx, conn)

		reason := m.readLoop(conn)
		cancelWrite()
		_ = conn.Close()
		m.setConn(nil)
		m.setState(domain.StateDisconnected)
		m.deliver(events.EventDisconnect, events.DisconnectPayload{Reason: reason})
	}
}

// Close tears the channel down, best-effort, no acknowledgment awaited.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.mu.Lock()
		if m.conn != nil {
			_ = m.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = m.conn.Close()
		}
		m.mu.Unlock()
	})
}

func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: m.opts.DialTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, m.wsURL, nil)
	return conn, err
}

// writeLoop serializes outbound frames and keeps the connection alive with
// pings, using write deadlines throughout.
func (m *Manager) writeLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(m.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-m.send:
			_ = conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			if err := conn.WriteJSON(env); err != nil {
				m.log.Errorf("write %s: %v", env.Event, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// readLoop decodes inbound envelopes until the connection drops and returns
// the disconnect reason.
func (m *Manager) readLoop(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
	})

	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			select {
			case <-m.closed:
				return "client closed"
			default:
			}
			return err.Error()
		}
		_ = conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		select {
		case m.events <- env:
		default:
			m.log.Warnf("event queue full, dropping %s", env.Event)
		}
	}
}

func (m *Manager) deliver(event string, payload interface{}) {
	env, err := events.NewEnvelope(event, payload)
	if err != nil {
		m.log.Errorf("deliver %s: %v", event, err)
		return
	}
	select {
	case m.events <- env:
	default:
		m.log.Warnf("event queue full, dropping %s", event)
	}
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}

func (m *Manager) setState(s domain.ConnState) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		m.log.Infof("connection %s: %s -> %s", m.id, prev, s)
	}
}

// describeDialError distinguishes network-level failures from everything
// else so the status surfaced to the user is actionable.
func describeDialError(err error) string {
	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.As(err, &opErr):
		return fmt.Sprintf("Network issue: %v", opErr)
	case errors.As(err, &netErr) && netErr.Timeout():
		return "Network issue: connection timed out"
	case errors.Is(err, context.DeadlineExceeded):
		return "Network issue: connection timed out"
	default:
		return fmt.Sprintf("Connection error: %v", err)
	}
}
