// Package daemon talks to a native media engine daemon over a Unix socket
// using newline-delimited JSON.
package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/linuxmatters/mediactl/internal/engine/wire"
)

// ErrClosed is returned when the daemon hangs up mid-exchange.
var ErrClosed = errors.New("connection closed")

// SocketPath returns the default engine socket path.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "mediactl", "engine.sock")
	}
	return filepath.Join(os.TempDir(), "mediactl-engine.sock")
}

// Client is one connection to the daemon.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to engine: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Client{conn: conn, scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand writes cmd and reads one response line. Cancelling ctx
// aborts the exchange by expiring the connection deadline.
func (c *Client) SendCommand(ctx context.Context, cmd wire.Command) (wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := c.conn.SetDeadline(deadline); err != nil {
		return wire.Response{}, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	data, err := json.Marshal(cmd)
	if err != nil {
		return wire.Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return wire.Response{}, c.ctxErr(ctx, fmt.Errorf("write command: %w", err))
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return wire.Response{}, c.ctxErr(ctx, fmt.Errorf("read response: %w", err))
		}
		return wire.Response{}, ErrClosed
	}

	var resp wire.Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return wire.Response{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return resp, nil
}

// ReadEvent reads the next event line. Blocks until data arrives.
func (c *Client) ReadEvent() (wire.Event, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return wire.Event{}, fmt.Errorf("read event: %w", err)
		}
		return wire.Event{}, ErrClosed
	}

	var ev wire.Event
	if err := json.Unmarshal(c.scanner.Bytes(), &ev); err != nil {
		return wire.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	return ev, nil
}

// ctxErr prefers the context error once ctx is done, so a cancelled call
// is reported as a timeout rather than an I/O failure.
func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
