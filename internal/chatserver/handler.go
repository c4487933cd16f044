package chatserver

import (
	"fmt"

	"github.com/haldane-labs/confrelay/internal/wire"
)

// handleConnection is the per-client worker (H): it reads frames in a
// strict loop, dispatches on type under the hub lock, and terminates on
// transport closure or EXIT. One goroutine owns exactly one connection
// for its entire lifetime.
func (s *Server) handleConnection(c *Client) {
	log := s.logger.With("client", c.ID)
	for {
		f, err := wire.Recv(c.Conn)
		if err != nil {
			s.abruptDisconnect(c)
			log.Info("connection closed")
			return
		}

		s.hub.Lock()
		s.hub.TouchClient(c)
		s.hub.Unlock()

		if !s.dispatch(c, f) {
			log.Info("client exited")
			return
		}
	}
}

// dispatch handles one received frame for client c. It returns false when
// the connection should terminate (EXIT or a fatal local close).
func (s *Server) dispatch(c *Client, f wire.Frame) bool {
	switch f.Type {
	case wire.Exit:
		s.hub.Lock()
		s.hub.LeaveAllSessions(c)
		s.hub.DeactivateClient(c)
		s.hub.Unlock()
		s.emitEvent("info", "exit", c.ID, "client logged out")
		return false

	case wire.Join:
		s.handleJoin(c, f.Data)

	case wire.LeaveSess:
		s.handleLeave(c, f.Session)

	case wire.NewSess:
		s.handleNewSession(c, f.Data)

	case wire.Message:
		s.handleMessage(c, f)

	case wire.Query:
		s.handleQuery(c)

	default:
		s.logger.Warn("ignoring unknown frame type", "type", f.Type, "client", c.ID)
	}
	return true
}

func (s *Server) handleJoin(c *Client, sid string) {
	s.hub.Lock()
	defer s.hub.Unlock()

	if _, ok := s.hub.FindSession(sid); !ok {
		s.send(c, wire.NewFrame(wire.JnNak, c.ID, "", fmt.Sprintf("%s: session not found", sid)))
		return
	}
	for _, j := range c.Joined {
		if j == sid {
			s.send(c, wire.NewFrame(wire.JnAck, c.ID, "", sid))
			return
		}
	}
	if len(c.Joined) >= s.maxJoined {
		s.send(c, wire.NewFrame(wire.JnNak, c.ID, "", "Session is full or error adding"))
		return
	}
	if err := s.hub.AddMember(sid, c.ID); err != nil {
		s.send(c, wire.NewFrame(wire.JnNak, c.ID, "", "Session is full or error adding"))
		return
	}
	c.Joined = append(c.Joined, sid)
	s.send(c, wire.NewFrame(wire.JnAck, c.ID, "", sid))
}

func (s *Server) handleLeave(c *Client, sid string) {
	if sid == "" {
		return
	}
	s.hub.Lock()
	defer s.hub.Unlock()

	isMember := false
	for _, j := range c.Joined {
		if j == sid {
			isMember = true
			break
		}
	}
	if !isMember {
		return
	}
	s.hub.RemoveMember(sid, c.ID)
	c.Joined = removeString(c.Joined, sid)
}

func (s *Server) handleNewSession(c *Client, sid string) {
	s.hub.Lock()
	defer s.hub.Unlock()

	if _, err := s.hub.CreateSession(sid); err != nil {
		s.send(c, wire.NewFrame(wire.JnNak, c.ID, "", fmt.Sprintf("Failed to create session %s", sid)))
		return
	}
	_ = s.hub.AddMember(sid, c.ID)
	c.Joined = append(c.Joined, sid)
	s.send(c, wire.NewFrame(wire.NsAck, c.ID, "", sid))
}

func (s *Server) handleMessage(c *Client, f wire.Frame) {
	out := wire.NewFrame(wire.Message, c.ID, f.Session, f.Data)
	s.hub.Lock()
	defer s.hub.Unlock()
	s.hub.Broadcast(f.Session, out)
}

func (s *Server) handleQuery(c *Client) {
	s.hub.Lock()
	listing := s.hub.ListAll()
	s.hub.Unlock()
	s.send(c, wire.NewFrame(wire.QuAck, c.ID, "", listing))
}

// send writes f to c's connection, logging (but not otherwise acting on)
// any failure — the next read on that connection will surface the closed
// transport and trigger abruptDisconnect.
func (s *Server) send(c *Client, f wire.Frame) {
	if err := wire.Send(c.Conn, f); err != nil {
		s.logger.Warn("send failed", "client", c.ID, "error", err)
	}
}

// abruptDisconnect handles a client whose transport closed without an
// EXIT frame: clean up sessions, deactivate and close, same as the EXIT
// path but triggered by recv failure instead of a message.
func (s *Server) abruptDisconnect(c *Client) {
	s.hub.Lock()
	if c.Active {
		s.hub.LeaveAllSessions(c)
		s.hub.DeactivateClient(c)
	}
	s.hub.Unlock()
	s.emitEvent("info", "disconnect", c.ID, "client disconnected")
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}
