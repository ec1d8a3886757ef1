package connection

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/svirmi/sitewatch/internal/logger"
	"github.com/svirmi/sitewatch/internal/models"
)

var log zerolog.Logger

func init() {
	log = logger.GetLogger("connection")
}

type Options struct {
	URL              string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	MaxMessageSize   int64

	// OnMessage receives raw inbound frames in delivery order.
	OnMessage func(data []byte)

	// OnStateChange observes lifecycle transitions with the current
	// retry-attempt count.
	OnStateChange func(state models.ConnState, attempts int)
}

// Manager owns the single logical connection to the event source. It dials,
// reads, and on transport failure schedules exactly one reconnect after the
// configured delay, forever, until Close.
type Manager struct {
	opts   Options
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     *websocket.Conn
	state    models.ConnState
	attempts int
	closed   bool

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func NewManager(opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 512 * 1024
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:   opts,
		logger: log.With().Str("url", opts.URL).Logger(),
		ctx:    ctx,
		cancel: cancel,
		state:  models.StateConnecting,
		done:   make(chan struct{}),
	}
}

// Start launches the connect/read/reconnect loop. Calling it more than once
// has no effect.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Close tears the connection down exactly once. No messages or state
// transitions are delivered afterwards; a second Close is a no-op.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.state = models.StateClosed
		conn := m.conn
		m.conn = nil
		m.mu.Unlock()

		m.cancel()
		if conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			conn.Close()
		}
		m.logger.Info().Msg("Connection manager closed")
	})
}

// State reports the current lifecycle state and retry-attempt count.
func (m *Manager) State() (models.ConnState, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.attempts
}

// SendPing writes an application-level {type:"ping"} frame. It reports
// whether a ping actually went out; nothing is sent unless the connection
// is open.
func (m *Manager) SendPing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.state != models.StateOpen || m.conn == nil {
		return false
	}
	if err := m.conn.WriteJSON(models.PingMessage{Type: "ping"}); err != nil {
		m.logger.Warn().Err(err).Msg("Ping write failed")
		return false
	}
	return true
}

// run is the single goroutine driving dial, read, and reconnect. Being the
// only scheduler of reconnects guarantees at most one pending timer.
func (m *Manager) run() {
	defer close(m.done)

	dialer := &websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}

	for {
		if m.ctx.Err() != nil {
			return
		}

		conn, resp, err := dialer.DialContext(m.ctx, m.opts.URL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.Warn().Err(err).Msg("Dial failed")
			m.transition(models.StateReconnecting, true)
			if !m.waitReconnect() {
				return
			}
			continue
		}

		if !m.attach(conn) {
			conn.Close()
			return
		}
		m.transition(models.StateOpen, false)
		m.logger.Info().Msg("Connected to event source")

		m.readLoop(conn)
		m.detach(conn)

		if m.ctx.Err() != nil {
			return
		}
		m.transition(models.StateReconnecting, true)
		if !m.waitReconnect() {
			return
		}
	}
}

func (m *Manager) waitReconnect() bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(m.opts.ReconnectDelay):
		return true
	}
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(m.opts.MaxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					m.logger.Warn().Err(err).Msg("Read error")
				}
			}
			return
		}

		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if m.opts.OnMessage != nil {
			m.opts.OnMessage(data)
		}
	}
}

func (m *Manager) attach(conn *websocket.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.conn = conn
	return true
}

func (m *Manager) detach(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	m.mu.Unlock()
	conn.Close()
}

// transition moves the state machine forward. bumpAttempts increments the
// retry counter; opening resets it. Suppressed entirely after Close.
func (m *Manager) transition(state models.ConnState, bumpAttempts bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.state = state
	if bumpAttempts {
		m.attempts++
	} else if state == models.StateOpen {
		m.attempts = 0
	}
	attempts := m.attempts
	cb := m.opts.OnStateChange
	m.mu.Unlock()

	m.logger.Debug().
		Stringer("state", state).
		Int("attempts", attempts).
		Msg("Connection state changed")

	if cb != nil {
		cb(state, attempts)
	}
}
