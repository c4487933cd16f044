// Package chatclient implements the client side of the conferencing wire
// protocol: dialing, login, session membership and message exchange. It
// deliberately stops at the wire: building an interactive shell around it
// is left to the caller.
package chatclient

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/haldane-labs/confrelay/internal/wire"
)

// ErrRejected is returned when the server NAKs a LOGIN, JOIN or NEW_SESS
// request instead of acknowledging it.
var ErrRejected = errors.New("chatclient: request rejected by server")

// Client is a single authenticated connection to a conferencing server.
// It is not safe for concurrent use by multiple goroutines except where
// noted.
type Client struct {
	conn net.Conn
	id   string
}

// Dial connects to addr and performs the LOGIN handshake. On success the
// returned Client is ready to JOIN sessions and exchange messages.
func Dial(addr, id, password string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	c := &Client{conn: conn, id: id}
	if err := wire.Send(conn, wire.NewFrame(wire.Login, id, "", password)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sending login: %w", err)
	}

	reply, err := wire.Recv(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("awaiting login reply: %w", err)
	}
	if reply.Type != wire.LoAck {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrRejected, reply.Data)
	}

	return c, nil
}

// Close sends EXIT and closes the underlying connection.
func (c *Client) Close() error {
	wire.Send(c.conn, wire.NewFrame(wire.Exit, c.id, "", ""))
	return c.conn.Close()
}

// NewSession asks the server to create a new session named session and
// join the client to it. It returns nil on NS_ACK and an error wrapping
// ErrRejected on any other reply.
func (c *Client) NewSession(session string) error {
	if err := wire.Send(c.conn, wire.NewFrame(wire.NewSess, c.id, "", session)); err != nil {
		return fmt.Errorf("sending new_sess: %w", err)
	}
	reply, err := wire.Recv(c.conn)
	if err != nil {
		return fmt.Errorf("awaiting new_sess reply: %w", err)
	}
	if reply.Type != wire.NsAck {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Data)
	}
	return nil
}

// Join asks to become a member of an existing session.
func (c *Client) Join(session string) error {
	if err := wire.Send(c.conn, wire.NewFrame(wire.Join, c.id, "", session)); err != nil {
		return fmt.Errorf("sending join: %w", err)
	}
	reply, err := wire.Recv(c.conn)
	if err != nil {
		return fmt.Errorf("awaiting join reply: %w", err)
	}
	if reply.Type != wire.JnAck {
		return fmt.Errorf("%w: %s", ErrRejected, reply.Data)
	}
	return nil
}

// Leave removes the client from a session's membership.
func (c *Client) Leave(session string) error {
	return wire.Send(c.conn, wire.NewFrame(wire.LeaveSess, c.id, session, ""))
}

// Say broadcasts data to every member of session, the sender included:
// the server echoes the MESSAGE back to this client as well.
func (c *Client) Say(session, data string) error {
	return wire.Send(c.conn, wire.NewFrame(wire.Message, c.id, session, data))
}

// Query asks the server for the current membership/session listing; the
// response frame's Data carries the server's text rendering of it.
func (c *Client) Query() (string, error) {
	if err := wire.Send(c.conn, wire.NewFrame(wire.Query, c.id, "", "")); err != nil {
		return "", fmt.Errorf("sending query: %w", err)
	}
	reply, err := wire.Recv(c.conn)
	if err != nil {
		return "", fmt.Errorf("awaiting query reply: %w", err)
	}
	if reply.Type != wire.QuAck {
		return "", fmt.Errorf("unexpected reply type %s to query", reply.Type)
	}
	return reply.Data, nil
}

// Recv blocks for the next frame pushed by the server — typically a
// MESSAGE broadcast from another member of a joined session.
func (c *Client) Recv() (wire.Frame, error) {
	return wire.Recv(c.conn)
}
