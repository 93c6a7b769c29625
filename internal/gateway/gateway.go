// Package gateway owns the WebSocket connection to the interview backend:
// dialing, message pumping, reconnection with exponential backoff, and
// teardown.
//
// Exactly one socket is open at a time. Every mutating action (reconnect,
// close) invalidates the existing handle under the lock before a new one is
// created. Inbound messages are decoded and delivered in arrival order on a
// single channel, so consumers see strictly ordered per-socket dispatch.
//
// Reconnection runs only while the session is live: once [Gateway.MarkEnding]
// or [Gateway.Close] has been called, or the peer closed with the normal
// closure code, a dropped socket stays down. Exceeding the attempt budget
// leaves the gateway in a degraded but inspectable state, reported as
// [StatusFailed].
package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/prepwell/intervox/internal/protocol"
)

// Default connection parameters.
const (
	defaultSettleDelay = 300 * time.Millisecond
	defaultBackoff     = 1 * time.Second
	defaultMaxBackoff  = 10 * time.Second
	defaultMaxAttempts = 5
)

// Status reports a connection lifecycle change.
type Status string

const (
	// StatusConnected is emitted after every successful open, initial or not.
	StatusConnected Status = "connected"

	// StatusReconnecting is emitted before each backoff wait.
	StatusReconnecting Status = "reconnecting"

	// StatusFailed is emitted when the attempt budget is exhausted.
	// The gateway will not dial again until Connect is called.
	StatusFailed Status = "failed"

	// StatusClosed is emitted after an intentional Close.
	StatusClosed Status = "closed"
)

// Conn is the minimal socket surface the gateway needs. The production
// implementation wraps [websocket.Conn]; tests substitute their own.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Dialer opens a Conn to the given URL.
type Dialer func(ctx context.Context, url string) (Conn, error)

// wsConn adapts a coder/websocket connection to [Conn].
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	return data, err
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close(code websocket.StatusCode, reason string) error {
	return c.conn.Close(code, reason)
}

// dialWebsocket is the default [Dialer].
func dialWebsocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// Config configures a [Gateway]. Zero-value fields take the package defaults.
type Config struct {
	// URL is the backend WebSocket endpoint.
	URL string

	// SettleDelay is how long Connect waits before dialing, damping rapid
	// reconnect storms after navigation-style restarts. Default: 300ms.
	SettleDelay time.Duration

	// Backoff is the first retry delay. It doubles per attempt up to
	// MaxBackoff. Default: 1s.
	Backoff time.Duration

	// MaxBackoff caps the retry delay. Default: 10s.
	MaxBackoff time.Duration

	// MaxAttempts is the reconnection attempt budget per outage. Default: 5.
	MaxAttempts int

	// Dial overrides the socket dialer. Default: coder/websocket.
	Dial Dialer
}

// Gateway manages the single backend socket. All exported methods are safe
// for concurrent use.
type Gateway struct {
	url         string
	settleDelay time.Duration
	backoff     time.Duration
	maxBackoff  time.Duration
	maxAttempts int
	dial        Dialer

	messages chan protocol.ServerMessage
	status   chan Status

	mu       sync.Mutex
	conn     Conn
	attempts int
	ending   bool
	closed   bool
	gen      int // increments on every handle replacement; stale pumps exit
}

// New creates a [Gateway]. It does not dial; call [Gateway.Connect].
func New(cfg Config) *Gateway {
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	dial := cfg.Dial
	if dial == nil {
		dial = dialWebsocket
	}
	return &Gateway{
		url:         cfg.URL,
		settleDelay: settle,
		backoff:     backoff,
		maxBackoff:  maxBackoff,
		maxAttempts: maxAttempts,
		dial:        dial,
		messages:    make(chan protocol.ServerMessage, 32),
		status:      make(chan Status, 8),
	}
}

// Messages delivers decoded inbound messages in arrival order.
func (g *Gateway) Messages() <-chan protocol.ServerMessage {
	return g.messages
}

// Statuses delivers connection lifecycle changes. The channel is buffered;
// stale statuses are dropped rather than blocking the pump.
func (g *Gateway) Statuses() <-chan Status {
	return g.status
}

// Connect waits the settle delay, then opens the socket, replacing any prior
// handle. The attempt counter resets on success. Calling Connect on a closed
// gateway revives it; this is the manual-reconnect path after StatusFailed.
func (g *Gateway) Connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.settleDelay):
	}

	conn, err := g.dial(ctx, g.url)
	if err != nil {
		return err
	}

	g.mu.Lock()
	old := g.conn
	g.conn = conn
	g.attempts = 0
	g.ending = false
	g.closed = false
	g.gen++
	gen := g.gen
	g.mu.Unlock()

	if old != nil {
		_ = old.Close(websocket.StatusNormalClosure, "superseded")
	}

	g.emit(StatusConnected)
	go g.pump(ctx, conn, gen)
	return nil
}

// Send writes msg to the open socket. When the socket is not open the call
// is a logged no-op, per the session error policy: callers recover by
// triggering Connect, not by handling a transport error mid-turn.
func (g *Gateway) Send(ctx context.Context, msg protocol.ClientMessage) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()

	if conn == nil {
		slog.Warn("gateway: send skipped, socket not open", "type", msg.Type)
		return nil
	}

	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, data); err != nil {
		slog.Warn("gateway: write failed", "type", msg.Type, "error", err)
		return nil
	}
	return nil
}

// MarkEnding suppresses all future reconnection attempts. Called at the top
// of the ending sequence, before the stop messages go out.
func (g *Gateway) MarkEnding() {
	g.mu.Lock()
	g.ending = true
	g.mu.Unlock()
}

// Close shuts the socket with the normal closure code. Safe to call any
// number of times; repeat calls are no-ops and never create a new socket.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.ending = true
	conn := g.conn
	g.conn = nil
	g.gen++
	g.mu.Unlock()

	g.emit(StatusClosed)
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "session ended")
	}
	return nil
}

// delayFor returns the backoff delay before reconnection attempt n
// (zero-based): backoff doubled per attempt, capped at maxBackoff.
func (g *Gateway) delayFor(attempt int) time.Duration {
	d := g.backoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= g.maxBackoff {
			return g.maxBackoff
		}
	}
	if d > g.maxBackoff {
		return g.maxBackoff
	}
	return d
}

// pump reads from conn until it fails, then decides whether to reconnect.
func (g *Gateway) pump(ctx context.Context, conn Conn, gen int) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			g.handleDrop(ctx, gen, err)
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("gateway: dropping undecodable message", "error", err)
			continue
		}

		select {
		case g.messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handleDrop runs the reconnection policy after a read failure on the
// connection generation gen.
func (g *Gateway) handleDrop(ctx context.Context, gen int, cause error) {
	g.mu.Lock()
	if g.gen != gen || g.closed || g.ending {
		// Handle already replaced or session winding down.
		g.mu.Unlock()
		return
	}
	g.conn = nil
	g.mu.Unlock()

	if websocket.CloseStatus(cause) == websocket.StatusNormalClosure {
		slog.Info("gateway: peer closed normally")
		return
	}
	if ctx.Err() != nil {
		return
	}

	slog.Warn("gateway: connection dropped", "error", cause)
	g.reconnect(ctx)
}

// reconnect retries the dial with exponential backoff until it succeeds,
// the attempt budget is exhausted, or the session ends.
func (g *Gateway) reconnect(ctx context.Context) {
	for {
		g.mu.Lock()
		if g.closed || g.ending {
			g.mu.Unlock()
			return
		}
		attempt := g.attempts
		if attempt >= g.maxAttempts {
			g.mu.Unlock()
			slog.Error("gateway: reconnection failed", "max_attempts", g.maxAttempts)
			g.emit(StatusFailed)
			return
		}
		g.attempts++
		g.mu.Unlock()

		delay := g.delayFor(attempt)
		slog.Info("gateway: reconnecting",
			"attempt", attempt+1,
			"max_attempts", g.maxAttempts,
			"backoff", delay,
		)
		g.emit(StatusReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		conn, err := g.dial(ctx, g.url)
		if err != nil {
			slog.Warn("gateway: reconnection attempt failed",
				"attempt", attempt+1, "error", err)
			continue
		}

		g.mu.Lock()
		if g.closed || g.ending {
			g.mu.Unlock()
			_ = conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		}
		g.conn = conn
		g.attempts = 0
		g.gen++
		gen := g.gen
		g.mu.Unlock()

		slog.Info("gateway: reconnected", "attempt", attempt+1)
		g.emit(StatusConnected)
		go g.pump(ctx, conn, gen)
		return
	}
}

// emit delivers a status without ever blocking the pump.
func (g *Gateway) emit(s Status) {
	select {
	case g.status <- s:
	default:
	}
}
