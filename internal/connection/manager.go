package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/metric"

	"Shurahub/internal/protocol"
	"Shurahub/internal/telemetry"
)

// Status is reported to the UI whenever the connection changes state
type Status int

const (
	StatusConnected Status = iota
	StatusReconnecting
	StatusError
)

// Handler receives every decoded inbound message
type Handler func(protocol.ServerMessage)

// StatusFunc receives connection state changes
type StatusFunc func(Status)

// ErrClosed is returned by Run after Close
var ErrClosed = errors.New("connection manager closed")

// Options configures a Manager
type Options struct {
	Header         http.Header // Sent with every dial, e.g. the session cookie
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
	Meter          metric.Meter
}

// Manager keeps one websocket open to the debate server. After an
// involuntary close it redials after a fixed delay, forever.
type Manager struct {
	url     string
	opts    Options
	logger  *slog.Logger
	handler Handler
	status  StatusFunc

	messages   metric.Int64Counter
	reconnects metric.Int64Counter

	attempts atomic.Int64

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	closed  bool
	done    chan struct{}
}

// NewManager creates a manager for the websocket at url
func NewManager(url string, opts Options, handler Handler, status StatusFunc, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if status == nil {
		status = func(Status) {}
	}

	return &Manager{
		url:        url,
		opts:       opts,
		logger:     logger,
		handler:    handler,
		status:     status,
		messages:   telemetry.Counter(opts.Meter, "shurahub.ws.messages", "Inbound websocket messages", logger),
		reconnects: telemetry.Counter(opts.Meter, "shurahub.ws.reconnects", "Websocket reconnect attempts", logger),
		done:       make(chan struct{}),
	}, nil
}

// Run dials and reads until ctx is cancelled or Close is called. Every
// dial failure or dropped connection is followed by the fixed reconnect
// delay and another dial.
func (m *Manager) Run(ctx context.Context) error {
	for {
		if err := m.stopped(ctx); err != nil {
			return err
		}

		n := m.attempts.Add(1)
		if n > 1 {
			m.reconnects.Add(ctx, 1)
		}

		conn, _, err := m.opts.Dialer.DialContext(ctx, m.url, m.opts.Header)
		if err != nil {
			m.logger.Warn("websocket dial failed", "url", m.url, "attempt", n, "error", err)
			m.status(StatusError)
		} else {
			m.logger.Info("websocket connected", "url", m.url, "attempt", n)
			if !m.setConn(conn) {
				conn.Close()
				return ErrClosed
			}
			m.status(StatusConnected)
			m.readLoop(ctx, conn)
			m.clearConn(conn)
		}

		if err := m.stopped(ctx); err != nil {
			return err
		}
		m.status(StatusReconnecting)

		select {
		case <-time.After(m.opts.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		}
	}
}

// Start runs the manager in a background goroutine
func (m *Manager) Start(ctx context.Context) {
	go func() {
		if err := m.Run(ctx); err != nil && !errors.Is(err, ErrClosed) && !errors.Is(err, context.Canceled) {
			m.logger.Error("websocket manager stopped", "error", err)
		}
	}()
}

func (m *Manager) stopped(ctx context.Context) error {
	select {
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (m *Manager) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				m.logger.Info("websocket closed by server")
			} else {
				m.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg protocol.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("dropping undecodable frame", "error", err, "bytes", len(data))
			continue
		}
		m.messages.Add(ctx, 1)
		m.handler(msg)
	}
}

func (m *Manager) setConn(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conn = conn
	return true
}

func (m *Manager) clearConn(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
	}
	conn.Close()
}

// Connected reports whether a connection is currently open
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Attempts returns the number of dials started so far
func (m *Manager) Attempts() int {
	return int(m.attempts.Load())
}

// Send writes a prompt to the server. When no connection is open the text
// is dropped and the drop is logged; nothing is queued.
func (m *Manager) Send(text string) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.logger.Warn("send dropped, websocket not open", "chars", len(text))
		return
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(protocol.ClientMessage{Text: text}); err != nil {
		m.logger.Warn("send failed", "error", err)
	}
}

// Close stops reconnecting and closes the current connection
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)

	if m.conn != nil {
		m.writeMu.Lock()
		m.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		m.conn.Close()
		m.conn = nil
	}

	m.logger.Info("closed websocket manager", "url", m.url)
	return nil
}
