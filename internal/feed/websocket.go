package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"drummond-lab/internal/domain"
)

// ErrNotConnected is returned when Read is called before Connect.
var ErrNotConnected = errors.New("websocket not connected")

// WSConfig configures the websocket tick source.
type WSConfig struct {
	URL            string
	APIKey         string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// WSClient is a TickSource backed by a trade-stream websocket. The wire
// format is the finnhub-style trade frame: {"type":"trade","data":[...]}.
//
// The connection is guarded by mu: all writes (subscribes, pings) go
// through mu-held helpers so a single writer touches the socket at a
// time, as gorilla/websocket requires.
type WSClient struct {
	cfg WSConfig
	log zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	pingDone chan struct{}
	pingWG   sync.WaitGroup
}

// NewWSClient creates a websocket tick source.
func NewWSClient(cfg WSConfig, log zerolog.Logger) *WSClient {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &WSClient{cfg: cfg, log: log.With().Str("component", "ws_feed").Logger()}
}

// Connect dials the stream and subscribes to the configured symbols.
func (c *WSClient) Connect(ctx context.Context) error {
	u := c.cfg.URL
	if c.cfg.APIKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.cfg.URL, c.cfg.APIKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.pingDone = make(chan struct{})
	c.mu.Unlock()

	for _, s := range c.cfg.Symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.writeJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info().Strs("symbols", c.cfg.Symbols).Msg("connected")
	return nil
}

// writeJSON writes a JSON frame while holding the connection lock.
func (c *WSClient) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(v)
}

// writePing sends a ping frame if a connection is live.
func (c *WSClient) writePing() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.PingMessage, nil)
	}
}

type wsTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string    `json:"type"`
	Data []wsTrade `json:"data"`
}

// Read streams ticks until the context is cancelled or the connection
// drops. A read failure is reported on the error channel; the caller
// decides whether to Reconnect. The keepalive goroutine started here is
// tied to the current connection and exits when Close or Reconnect
// tears it down.
func (c *WSClient) Read(ctx context.Context) (<-chan *domain.Tick, <-chan error) {
	ticks := make(chan *domain.Tick, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	pingDone := c.pingDone
	c.mu.Unlock()

	if conn == nil {
		errs <- ErrNotConnected
		close(ticks)
		close(errs)
		return ticks, errs
	}

	c.pingWG.Add(1)
	go func() {
		defer c.pingWG.Done()
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-pingDone:
				return
			case <-ticker.C:
				c.writePing()
			}
		}
	}()

	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("read: %w", err)
				return
			}
			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil {
				// non-trade frames (pings, acks) are not errors
				continue
			}
			if m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				tick := &domain.Tick{
					Symbol:      d.S,
					TimestampMs: d.T,
					Price:       d.P,
					Volume:      d.V,
				}
				select {
				case ticks <- tick:
				default:
					c.log.Warn().Str("symbol", d.S).Msg("tick dropped on backpressure")
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes the connection, waits the configured delay and dials
// plus resubscribes.
func (c *WSClient) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ReconnectDelay):
	}
	return c.Connect(ctx)
}

// Close stops the keepalive goroutine and closes the websocket
// connection. Safe to call more than once.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingDone != nil {
		close(c.pingDone)
		c.pingDone = nil
	}
	c.mu.Unlock()

	c.pingWG.Wait()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Ensure WSClient implements TickSource.
var _ TickSource = (*WSClient)(nil)
