// Package console talks to the collaborator's master websocket, which fans
// commands out to node consumers and relays their messages back.
package console

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/gorilla/websocket"
)

// TargetAll broadcasts a command to every connected node
const TargetAll = "all"

const (
	writeWait   = 5 * time.Second
	frameBuffer = 16
)

// ErrClosed is returned by Send after Close
var ErrClosed = errors.New("console connection closed")

// Command is what the master sends
type Command struct {
	Command string `json:"command"`
	Target  string `json:"target"`
}

// Frame is anything the master endpoint sends back: a relayed node message,
// a command acknowledgement or an error.
type Frame struct {
	From    string `json:"from,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Command string `json:"command,omitempty"`
	Target  string `json:"target,omitempty"`
	Error   string `json:"error,omitempty"`
}

// String renders the frame for the operator log
func (f Frame) String() string {
	switch {
	case f.Error != "":
		return "console: " + f.Error
	case f.Status != "":
		return fmt.Sprintf("console: %s (%s -> %s)", f.Status, f.Command, f.Target)
	default:
		return fmt.Sprintf("console: node %s says %q", f.From, f.Message)
	}
}

// Level is the operator log level for the frame
func (f Frame) Level() logging.Level {
	if f.Error != "" {
		return logging.WarnLevel
	}
	return logging.InfoLevel
}

// UnmarshalJSON accepts numeric or string sender and target ids
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw struct {
		From    json.RawMessage `json:"from"`
		Message json.RawMessage `json:"message"`
		Status  string          `json:"status"`
		Command string          `json:"command"`
		Target  json.RawMessage `json:"target"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Frame{
		From:    looseString(raw.From),
		Message: looseString(raw.Message),
		Status:  raw.Status,
		Command: raw.Command,
		Target:  looseString(raw.Target),
		Error:   raw.Error,
	}
	return nil
}

func looseString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// URL builds the master endpoint address
func URL(host string, port int, path string) string {
	return endpoint("ws", host, port, path)
}

// SecureURL builds the master endpoint address over TLS
func SecureURL(host string, port int, path string) string {
	return endpoint("wss", host, port, path)
}

func endpoint(scheme, host string, port int, path string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   path,
	}
	return u.String()
}

// Client is a connected master console
type Client struct {
	conn   *websocket.Conn
	logger logging.Logger

	writeMu sync.Mutex
	frames  chan Frame
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once

	errMu sync.Mutex
	err   error
}

// DialOption configures Dial
type DialOption func(*websocket.Dialer)

// WithTLS sets the client TLS configuration for wss endpoints
func WithTLS(cfg *tls.Config) DialOption {
	return func(d *websocket.Dialer) { d.TLSClientConfig = cfg }
}

// Dial connects to the master endpoint and starts reading frames
func Dial(ctx context.Context, endpoint string, logger logging.Logger, opts ...DialOption) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	dialer := *websocket.DefaultDialer
	for _, opt := range opts {
		opt(&dialer)
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial console %s: %w", endpoint, err)
	}

	c := &Client{
		conn:   conn,
		logger: logger.With(logging.Component("console")),
		frames: make(chan Frame, frameBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()

	c.logger.Info("console connected", logging.String("url", endpoint))
	return c, nil
}

// Frames delivers received frames; it is closed when the connection ends
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

// Dropped counts frames discarded because nobody drained Frames
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Err reports why the read loop stopped, if it has
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Send issues a command to target (a node id or TargetAll)
func (c *Client) Send(command, target string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(Command{Command: command, Target: target}); err != nil {
		return fmt.Errorf("send %q to %s: %w", command, target, err)
	}
	c.logger.Debug("console command sent", logging.String("command", command), logging.String("target", target))
	return nil
}

// Close sends a close frame and tears the connection down
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.frames)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warn("console connection lost", logging.Error(err))
				}
				c.errMu.Lock()
				c.err = err
				c.errMu.Unlock()
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			f = Frame{Error: "malformed frame: " + err.Error()}
		}

		select {
		case <-c.done:
			return
		default:
			c.deliver(f)
		}
	}
}

// deliver queues f without blocking the read loop. When the buffer is full
// the oldest queued frame is discarded.
func (c *Client) deliver(f Frame) {
	for {
		select {
		case c.frames <- f:
			return
		default:
		}

		select {
		case old := <-c.frames:
			n := c.dropped.Add(1)
			c.logger.Debug("console frame dropped",
				logging.String("from", old.From),
				logging.String("command", old.Command),
				logging.Int64("dropped_total", n),
			)
		default:
		}
	}
}
