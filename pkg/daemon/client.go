package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNotRunning is returned by Dial when no daemon listens on the socket.
var ErrNotRunning = errors.New("daemon not running")

// Client is a subscribed connection to a daemon.
type Client struct {
	id      string
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

// Dial connects to the daemon for session and subscribes as clientID.
func Dial(session, clientID string) (*Client, error) {
	return DialSocket(SocketPath(session), clientID)
}

// DialSocket is Dial with an explicit socket path.
func DialSocket(socketPath, clientID string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	c := &Client{id: clientID, conn: conn, scanner: scanner}
	if err := c.send(MsgSubscribe, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) send(t MessageType, payload interface{}) error {
	msg, err := NewMessage(t, c.id, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return sendMessage(c.conn, msg)
}

// Next blocks until the next frame arrives.
func (c *Client) Next() (Message, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Message{}, err
		}
		return Message{}, net.ErrClosed
	}
	var msg Message
	if err := json.Unmarshal(c.scanner.Bytes(), &msg); err != nil {
		return Message{}, fmt.Errorf("bad frame: %w", err)
	}
	return msg, nil
}

// NextRows skips frames until a rows frame arrives. Error frames are
// returned as errors.
func (c *Client) NextRows() (*RowsPayload, error) {
	for {
		msg, err := c.Next()
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case MsgRows:
			var rows RowsPayload
			if err := msg.Decode(&rows); err != nil {
				return nil, err
			}
			return &rows, nil
		case MsgError:
			var e ErrorPayload
			if err := msg.Decode(&e); err != nil {
				return nil, err
			}
			return nil, errors.New(e.Message)
		}
	}
}

// Act sends a user action to the daemon.
func (c *Client) Act(action, rowID string) error {
	a := ActionPayload{Action: action, RowID: rowID}
	if err := a.Validate(); err != nil {
		return err
	}
	return c.send(MsgAction, a)
}

// Ping asks the daemon for a pong frame.
func (c *Client) Ping() error {
	return c.send(MsgPing, nil)
}

// Close unsubscribes and closes the connection.
func (c *Client) Close() error {
	c.send(MsgUnsubscribe, nil)
	return c.conn.Close()
}
