// Package chatserver implements the text conferencing service: the
// session and client registries, the per-connection handler, the login
// acceptor and the idle reaper described by the wire protocol in
// internal/wire.
package chatserver

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Sentinel errors returned by registry operations. Handlers translate
// these into NAK frames or silent no-ops per the protocol's error policy.
var (
	ErrExists   = errors.New("chatserver: already exists")
	ErrCapacity = errors.New("chatserver: at capacity")
	ErrNotFound = errors.New("chatserver: not found")
)

// Client is one authenticated, connected principal. Every field is
// accessed only while the owning Hub's lock is held. LastActivity is a
// wall-clock Unix-seconds stamp, set under the lock by TouchClient and
// read by the reaper under the same lock — there is no lock-free path to it.
type Client struct {
	Conn         net.Conn
	ID           string
	Addr         string
	Joined       []string // session IDs, ordered, no duplicates
	Active       bool
	LastActivity int64 // unix seconds
	slot         int
}

// Hub owns the session and client registries behind a single global
// lock: every mutation and every read that depends on a find-then-act
// sequence happens while mu is held. Broadcast sends are performed while
// holding mu — acceptable given the small frame size and member counts.
type Hub struct {
	mu sync.Mutex

	clients     []*Client // fixed-size slot table, nil = free
	sessions    map[string]*Session
	maxSessions int
	maxJoined   int

	logger *slog.Logger
}

// NewHub allocates a Hub with capacity for maxClients concurrent logins
// and maxSessions concurrent conferences.
func NewHub(maxClients, maxSessions, maxJoined int, logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make([]*Client, maxClients),
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		maxJoined:   maxJoined,
		logger:      logger,
	}
}

// Lock and Unlock expose the Hub's single mutex to callers — the
// connection handler, acceptor and reaper — that need to run a
// find-then-act sequence as one atomic step.
func (h *Hub) Lock()   { h.mu.Lock() }
func (h *Hub) Unlock() { h.mu.Unlock() }

// FindClientByID returns the active client with the given principal ID.
// Caller must hold the lock.
func (h *Hub) FindClientByID(id string) (*Client, bool) {
	for _, c := range h.clients {
		if c != nil && c.Active && c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// FindFreeSlot returns the index of an empty slot, if any. Caller must
// hold the lock.
func (h *Hub) FindFreeSlot() (int, bool) {
	for i, c := range h.clients {
		if c == nil {
			return i, true
		}
	}
	return 0, false
}

// RegisterClient occupies slot with a new active Client record. Caller
// must hold the lock and must have already confirmed the slot is free and
// the ID is unique among active clients.
func (h *Hub) RegisterClient(slot int, conn net.Conn, id, addr string) *Client {
	c := &Client{
		Conn:         conn,
		ID:           id,
		Addr:         addr,
		Active:       true,
		LastActivity: time.Now().Unix(),
		slot:         slot,
	}
	h.clients[slot] = c
	return c
}

// TouchClient stamps last-activity to now. Caller must hold the lock.
func (h *Hub) TouchClient(c *Client) {
	c.LastActivity = time.Now().Unix()
}

// DeactivateClient marks c inactive, closes its handle and frees its
// slot. It does not remove c from any session — callers must do that
// first via RemoveMember/LeaveAllSessions so membership never observes
// a gap. Caller must hold the lock.
func (h *Hub) DeactivateClient(c *Client) {
	c.Active = false
	_ = c.Conn.Close()
	h.clients[c.slot] = nil
}

// LeaveAllSessions removes c from every session it has joined, deleting
// any session that this empties, and clears c.Joined. Caller must
// hold the lock.
func (h *Hub) LeaveAllSessions(c *Client) {
	joined := c.Joined
	c.Joined = nil
	for _, sid := range joined {
		h.removeMemberLocked(sid, c.ID)
	}
}

// ActiveClients returns a snapshot slice of all active clients. Caller
// must hold the lock; the returned slice aliases no internal storage
// after the call returns (copies of pointers, which is the convention
// used throughout this registry).
func (h *Hub) ActiveClients() []*Client {
	var out []*Client
	for _, c := range h.clients {
		if c != nil && c.Active {
			out = append(out, c)
		}
	}
	return out
}
