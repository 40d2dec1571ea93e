package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/messenjrali/msgr/internal/bus"
	"github.com/messenjrali/msgr/internal/session"
	"github.com/messenjrali/msgr/internal/status"
	"go.uber.org/zap"
)

const (
	// healthInterval is the sole retry mechanism: no backoff, just a
	// fixed-cadence "reconnect if down and a token exists" check.
	healthInterval = 15 * time.Second

	pongWait   = 45 * time.Second
	pingPeriod = 20 * time.Second
	writeWait  = 10 * time.Second
)

// Manager owns the single realtime connection for a profile. No other
// component opens a socket or mutates transport state; they read the
// status machine and subscribe to the bus.
type Manager struct {
	url     string
	creds   *session.Store
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
	dialer  *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	gen  uint64 // handle generation; stale read pumps must not clobber state

	cancel context.CancelFunc

	// Reconnects counts successful dials after the first. Exposed as a metric.
	reconnects int64
}

// NewManager creates a connection manager for the given realtime URL.
func NewManager(url string, creds *session.Store, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *Manager {
	return &Manager{
		url:     url,
		creds:   creds,
		bus:     b,
		machine: machine,
		logger:  logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Connect is idempotent: connected means no-op, a missing token means no-op
// (the profile is simply unauthenticated). Otherwise any stale handle is
// torn down before a new dial, so at most one handle ever exists.
func (m *Manager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		return nil
	}
	token := m.creds.AccessToken()
	if token == "" {
		_ = m.machine.Transition(status.AuthRequired)
		return nil
	}

	_ = m.machine.Transition(status.Connecting)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := m.dialer.Dial(m.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		// Never fatal: stay down, the health ticker tries again.
		_ = m.machine.Transition(status.Reconnecting)
		m.logger.Warn("realtime dial failed", zap.Error(err))
		return err
	}

	m.gen++
	m.conn = conn
	if m.gen > 1 {
		m.reconnects++
	}
	_ = m.machine.Transition(status.Connected)
	m.logger.Info("realtime connected", zap.Uint64("generation", m.gen))

	go m.readPump(m.gen, conn)
	go m.pingLoop(m.gen, conn)
	return nil
}

// Disconnect tears down the handle; safe when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

// IsConnected reports whether a live handle exists.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Reconnects returns the number of re-dials since startup.
func (m *Manager) Reconnects() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// Start runs the recovery loop: a periodic health check that reconnects
// whenever the handle is down and a token is present, and a forced
// reconnect when the cached credentials change out from under us.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	credCh, unsub := m.bus.Subscribe("session.credentials_changed", 8)

	go func() {
		defer unsub()
		ticker := time.NewTicker(healthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !m.IsConnected() && m.creds.AccessToken() != "" {
					_ = m.Connect()
				}
			case <-credCh:
				// Token changed (login, logout or refresh from another
				// process): drop the old handle and dial with the new token.
				m.logger.Info("credentials changed, recycling connection")
				m.Disconnect()
				_ = m.Connect()
			case <-ctx.Done():
				m.Disconnect()
				return
			}
		}
	}()
}

// Stop cancels the recovery loop and tears down the connection.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.Disconnect()
}

// teardownLocked closes the current handle. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.conn == nil {
		return
	}
	_ = m.conn.Close()
	m.conn = nil
	if m.creds.AccessToken() == "" {
		_ = m.machine.Transition(status.AuthRequired)
	} else {
		_ = m.machine.Transition(status.Reconnecting)
	}
}

// handleDead marks the handle of the given generation dead. A stale pump
// reporting after a newer dial is ignored.
func (m *Manager) handleDead(gen uint64, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.conn != conn {
		return
	}
	m.teardownLocked()
}

func (m *Manager) readPump(gen uint64, conn *websocket.Conn) {
	defer m.handleDead(gen, conn)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("realtime read failed", zap.Error(err))
			return
		}
		evt, err := Decode(raw)
		if err != nil {
			// Frames we do not understand are dropped, not fatal.
			m.logger.Debug("dropping realtime frame", zap.Error(err))
			continue
		}
		m.bus.Publish(evt)
	}
}

func (m *Manager) pingLoop(gen uint64, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := m.gen != gen || m.conn != conn
		m.mu.Unlock()
		if stale {
			return
		}
		if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			m.handleDead(gen, conn)
			return
		}
	}
}
