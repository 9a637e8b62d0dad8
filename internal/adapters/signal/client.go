package signal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected to signaling server")

const (
	signalPath   = "/api/ws/signal"
	maxBackoff   = 30 * time.Second
	dialTimeout  = 10 * time.Second
	defaultPing  = 30 * time.Second
	closeTimeout = time.Second
)

// WSClient is a participant's WebSocket connection to the signaling
// server. It reconnects with backoff when the socket drops.
type WSClient struct {
	url        string
	token      string
	pingPeriod time.Duration
	log        zerolog.Logger

	mu   sync.RWMutex
	conn *websocket.Conn
	// writeMu serializes writers; gorilla allows one at a time.
	writeMu sync.Mutex

	subs   *fanout
	ctx    context.Context
	cancel context.CancelFunc

	reconnectMu  sync.Mutex
	reconnecting bool
}

// SignalURL turns a server base address into the room's socket URL.
func SignalURL(base string, room domain.AppointmentID) (string, error) {
	if after, ok := strings.CutPrefix(base, "http://"); ok {
		base = "ws://" + after
	} else if after, ok := strings.CutPrefix(base, "https://"); ok {
		base = "wss://" + after
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + signalPath)
	if err != nil {
		return "", fmt.Errorf("parse signal url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("signal url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("room", string(room))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func DialWS(ctx context.Context, base string, room domain.AppointmentID, token string, pingPeriod time.Duration) (*WSClient, error) {
	wsURL, err := SignalURL(base, room)
	if err != nil {
		return nil, err
	}
	if pingPeriod <= 0 {
		pingPeriod = defaultPing
	}
	c := &WSClient{
		url:        wsURL,
		token:      token,
		pingPeriod: pingPeriod,
		log:        log.With().Str("module", "signal.client").Str("room", string(room)).Logger(),
		subs:       newFanout(),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.connectOnce(ctx); err != nil {
		c.cancel()
		return nil, err
	}
	go c.keepalive()
	return c, nil
}

func (c *WSClient) connectOnce(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = dialTimeout

	headers := make(map[string][]string)
	headers["Authorization"] = []string{"Bearer " + c.token}

	conn, resp, err := dialer.DialContext(ctx, c.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect to signaling server: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("connect to signaling server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Info().Str("url", c.url).Msg("connected")

	go c.readMessages(conn)
	return nil
}

func (c *WSClient) readMessages(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
				return
			default:
			}
			c.log.Warn().Err(err).Msg("read error")
			go c.reconnect()
			return
		}
		msg, err := domain.Decode(data)
		if err != nil {
			c.log.Warn().Err(err).Msg("bad message")
			continue
		}
		if msg.Kind == domain.KindPong {
			continue
		}
		c.subs.publish(msg)
	}
}

func (c *WSClient) Send(ctx context.Context, msg domain.Message) error {
	data, err := domain.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Kind, err)
	}
	return nil
}

func (c *WSClient) Subscribe() (<-chan domain.Message, func()) {
	return c.subs.subscribe()
}

func (c *WSClient) keepalive() {
	ticker := time.NewTicker(c.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Warn().Err(err).Msg("ping failed")
			}
		}
	}
}

// reconnect retries with exponential backoff until it succeeds or the
// client is closed.
func (c *WSClient) reconnect() {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; ; attempt++ {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		err := c.connectOnce(c.ctx)
		if err == nil {
			c.log.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", backoff).Msg("reconnect failed")
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *WSClient) Close() error {
	c.cancel()
	c.subs.close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeTimeout))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.conn = nil
	c.log.Info().Msg("connection closed")
	return err
}
