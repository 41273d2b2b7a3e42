package gmlink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/udisondev/grimoire/internal/game/skill"
)

// ErrClosed is returned by Execute after the link went down.
var ErrClosed = errors.New("gmlink closed")

// Client is the spell-server side of the link. It implements
// skill.PermissionDelegate and correlates acks with commands by ID, so
// several goroutines may Execute concurrently.
type Client struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan skill.Ack
	err     error

	done chan struct{}
}

var _ skill.PermissionDelegate = (*Client)(nil)

// ClientOptions tunes Dial.
type ClientOptions struct {
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
}

// Dial connects to a gmlink server at url (ws:// or wss://, including DelegatePath).
func Dial(ctx context.Context, url, token string, opts ClientOptions) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set(TokenHeader, token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing gmlink %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dialing gmlink %s: %w", url, err)
	}

	c := &Client{
		conn:         conn,
		writeTimeout: opts.WriteTimeout,
		pending:      make(map[string]chan skill.Ack),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	go c.pingLoop()

	slog.Info("gmlink connected", "url", url)
	return c, nil
}

// Execute sends cmd and waits for its ack.
// Link failures are reported as skill.ErrDelegationUnavailable.
func (c *Client) Execute(ctx context.Context, cmd skill.Command) (skill.Ack, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	ch := make(chan skill.Ack, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return skill.Ack{}, fmt.Errorf("%w: %w", skill.ErrDelegationUnavailable, err)
	}
	c.pending[cmd.ID] = ch
	c.mu.Unlock()

	if err := c.write(cmd); err != nil {
		c.forget(cmd.ID)
		return skill.Ack{}, fmt.Errorf("%w: sending command: %w", skill.ErrDelegationUnavailable, err)
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return skill.Ack{}, fmt.Errorf("%w: %w", skill.ErrDelegationUnavailable, c.Err())
		}
		return ack, nil
	case <-ctx.Done():
		c.forget(cmd.ID)
		return skill.Ack{}, fmt.Errorf("%w: %w", skill.ErrDelegationUnavailable, ctx.Err())
	}
}

// Done is closed when the link goes down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the link went down (nil while it is up).
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame and tears the link down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.fail(ErrClosed)
	return c.conn.Close()
}

func (c *Client) write(cmd skill.Command) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteJSON(cmd)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	for {
		var ack skill.Ack
		if err := c.conn.ReadJSON(&ack); err != nil {
			c.fail(err)
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[ack.ID]
		delete(c.pending, ack.ID)
		c.mu.Unlock()

		if !ok {
			slog.Warn("gmlink ack without pending command", "commandID", ack.ID, "error", ack.Error)
			continue
		}
		ch <- ack
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.writeMu.Unlock()
			if err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// fail marks the link down once and releases every waiter.
func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	close(c.done)
	slog.Info("gmlink disconnected", "reason", err)
}
