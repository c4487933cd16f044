package chatserver

import (
	"net"

	"github.com/haldane-labs/confrelay/internal/wire"
)

// acceptConn runs the login handshake for one freshly-accepted
// connection. On success it registers the client and spawns its handler
// goroutine; on any failure it replies with a NAK (where applicable) and
// closes the connection itself.
func (s *Server) acceptConn(conn net.Conn) {
	f, err := wire.Recv(conn)
	if err != nil {
		conn.Close()
		return
	}
	if f.Type != wire.Login {
		conn.Close()
		return
	}

	id := f.Source
	log := s.logger.With("remote", conn.RemoteAddr().String(), "client", id)

	s.hub.Lock()
	if _, exists := s.hub.FindClientByID(id); exists {
		s.hub.Unlock()
		s.nak(conn, wire.LoNak, id, "Client ID already in use")
		conn.Close()
		log.Info("login rejected: duplicate id")
		return
	}
	s.hub.Unlock()

	if !s.auth.Authenticate(id, f.Data) {
		s.nak(conn, wire.LoNak, id, "Invalid username/password")
		conn.Close()
		log.Info("login rejected: bad credentials")
		return
	}

	s.hub.Lock()
	slot, ok := s.hub.FindFreeSlot()
	if !ok {
		s.hub.Unlock()
		s.nak(conn, wire.LoNak, id, "Server full")
		conn.Close()
		log.Info("login rejected: server full")
		return
	}
	c := s.hub.RegisterClient(slot, conn, id, conn.RemoteAddr().String())
	s.hub.Unlock()

	ack := wire.NewFrame(wire.LoAck, id, "", "Login successful")
	if err := wire.Send(conn, ack); err != nil {
		s.hub.Lock()
		s.hub.DeactivateClient(c)
		s.hub.Unlock()
		return
	}

	log.Info("login accepted")
	s.emitEvent("info", "login", id, "client logged in")
	go s.handleConnection(c)
}

func (s *Server) nak(conn net.Conn, t wire.MsgType, source, reason string) {
	_ = wire.Send(conn, wire.NewFrame(t, source, "", reason))
}
