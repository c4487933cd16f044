package chatserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/haldane-labs/confrelay/internal/auth"
	"github.com/haldane-labs/confrelay/internal/chatserver/observability"
	"github.com/haldane-labs/confrelay/internal/config"
)

// Server is the top-level conferencing service: it owns the Hub, the
// authenticator, the idle reaper and the optional observability sink, and
// drives the accept loop.
type Server struct {
	cfg       *config.ServerConfig
	hub       *Hub
	auth      *auth.Authenticator
	logger    *slog.Logger
	maxJoined int

	events  *observability.EventStore
	monitor *SystemMonitor
}

// NewServer wires a Server from its loaded configuration and credential
// table. Callers still need to call Run to actually listen.
func NewServer(cfg *config.ServerConfig, table *config.UserTable, logger *slog.Logger) (*Server, error) {
	hub := NewHub(cfg.Limits.MaxClients, cfg.Limits.MaxSessions, cfg.Limits.MaxJoinedPerClient, logger)

	var events *observability.EventStore
	if cfg.WebUI.Enabled {
		var err error
		events, err = observability.NewEventStore(cfg.WebUI.EventsFile, 500, cfg.WebUI.EventsMaxLines)
		if err != nil {
			return nil, fmt.Errorf("opening events store: %w", err)
		}
	}

	return &Server{
		cfg:       cfg,
		hub:       hub,
		auth:      auth.New(table),
		logger:    logger,
		maxJoined: cfg.Limits.MaxJoinedPerClient,
		events:    events,
		monitor:   NewSystemMonitor(logger),
	}, nil
}

// emitEvent records an operational event to the optional observability
// sink. It is always safe to call, including when observability is
// disabled (events is nil).
func (s *Server) emitEvent(level, kind, client, message string) {
	if s.events == nil {
		return
	}
	s.events.Push(observability.EventEntry{
		Level:   level,
		Type:    kind,
		Client:  client,
		Message: message,
	})
}

// Run binds the listen address and blocks, accepting connections,
// running the idle reaper, and — if configured — serving the
// observability HTTP endpoint and the session-history archiver, until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}
	defer ln.Close()

	s.logger.Info("conferencing server listening", "address", s.cfg.Server.Listen)

	s.monitor.Start()
	defer s.monitor.Stop()

	go s.runReaper(ctx, s.cfg.Limits.ReaperInterval, s.cfg.Limits.IdleTimeout)

	var archiver *Archiver
	if s.cfg.Archive.Enabled {
		archiver, err = NewArchiver(s.cfg, s.hub, s.logger)
		if err != nil {
			return fmt.Errorf("starting archiver: %w", err)
		}
		archiver.Start()
		defer archiver.Stop()
	}

	if s.cfg.WebUI.Enabled {
		srv := observability.NewServer(s.cfg.WebUI.Listen, s, s.events, s.cfg.WebUI.ParsedCIDRs)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				s.logger.Warn("observability server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down conferencing server")
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		go s.acceptConn(conn)
	}
}

// Snapshot implements observability.MetricsSource for the HTTP endpoint:
// a point-in-time view of client and session counts plus host stats.
func (s *Server) Snapshot() observability.Snapshot {
	s.hub.Lock()
	clients := s.hub.ActiveClients()
	sessions := s.hub.SessionCount()
	s.hub.Unlock()

	snap := observability.Snapshot{
		ActiveClients: len(clients),
		ActiveSessions: sessions,
		Uptime:         time.Since(s.startedAt()).String(),
	}
	if s.monitor != nil {
		snap.Host = s.monitor.Stats()
	}
	for _, c := range clients {
		snap.Clients = append(snap.Clients, observability.ClientSummary{
			ID:          c.ID,
			Addr:        c.Addr,
			JoinedCount: len(c.Joined),
		})
	}
	return snap
}

var processStart = time.Now()

func (s *Server) startedAt() time.Time { return processStart }
