package chatserver

import (
	"fmt"
	"strings"

	"github.com/haldane-labs/confrelay/internal/wire"
)

// Session is a named conference: an ordered, duplicate-free list of
// member principal IDs. A Session is removed from the Hub the instant its
// member count reaches zero — there is no empty-session state.
type Session struct {
	ID      string
	Members []string
}

// FindSession returns the session with the given ID. Caller must hold
// the lock.
func (h *Hub) FindSession(sid string) (*Session, bool) {
	s, ok := h.sessions[sid]
	return s, ok
}

// CreateSession creates an empty session named sid. Caller must hold the
// lock.
func (h *Hub) CreateSession(sid string) (*Session, error) {
	if _, exists := h.sessions[sid]; exists {
		return nil, ErrExists
	}
	if len(h.sessions) >= h.maxSessions {
		return nil, ErrCapacity
	}
	s := &Session{ID: sid}
	h.sessions[sid] = s
	return s, nil
}

// AddMember adds cid to session sid, creating neither the client nor the
// session. Idempotent: adding an existing member returns nil without
// duplicating it. Caller must hold the lock.
func (h *Hub) AddMember(sid, cid string) error {
	s, ok := h.sessions[sid]
	if !ok {
		return ErrNotFound
	}
	for _, m := range s.Members {
		if m == cid {
			return nil
		}
	}
	if len(s.Members) >= cap(h.clients) {
		return ErrCapacity
	}
	s.Members = append(s.Members, cid)
	return nil
}

// RemoveMember removes cid from session sid. If this empties the
// session, the session is deleted too. Returns whether the session
// was deleted. Caller must hold the lock.
func (h *Hub) RemoveMember(sid, cid string) bool {
	return h.removeMemberLocked(sid, cid)
}

func (h *Hub) removeMemberLocked(sid, cid string) bool {
	s, ok := h.sessions[sid]
	if !ok {
		return false
	}
	idx := -1
	for i, m := range s.Members {
		if m == cid {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	s.Members = append(s.Members[:idx], s.Members[idx+1:]...)
	if len(s.Members) == 0 {
		delete(h.sessions, sid)
		return true
	}
	return false
}

// Broadcast sends f to every member of session sid, resolving each member
// ID to its client record and writing the frame on that client's
// connection. Send failures are logged and do not abort the broadcast —
// a member with a dead connection still gets its turn; the reaper or its
// own next read is what eventually evicts it. Caller must hold the lock
// broadcast sends happen inside the critical section.
func (h *Hub) Broadcast(sid string, f wire.Frame) {
	s, ok := h.sessions[sid]
	if !ok {
		return
	}
	for _, cid := range s.Members {
		c, ok := h.FindClientByID(cid)
		if !ok {
			continue
		}
		if err := wire.Send(c.Conn, f); err != nil {
			if h.logger != nil {
				h.logger.Warn("broadcast send failed", "session", sid, "client", cid, "error", err)
			}
		}
	}
}

// SessionCount returns the number of live sessions. Caller must hold the
// lock.
func (h *Hub) SessionCount() int {
	return len(h.sessions)
}

// ListAll renders the human-readable summary returned by QUERY: every
// active client ID followed by every session and its member count.
// Caller must hold the lock.
func (h *Hub) ListAll() string {
	var b strings.Builder
	b.WriteString("Users:\n")
	for _, c := range h.ActiveClients() {
		fmt.Fprintf(&b, "  %s\n", c.ID)
	}
	b.WriteString("Sessions:\n")
	for sid, s := range h.sessions {
		fmt.Fprintf(&b, "  %s (%d members)\n", sid, len(s.Members))
	}
	return b.String()
}
