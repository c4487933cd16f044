package chatserver

import (
	"context"
	"time"
)

// runReaper is the idle reaper (I): every interval it scans active
// clients and forcibly disconnects anyone whose last activity is older
// than idleTimeout. Eviction closes the handle, which makes the victim's
// next Recv observe wire.ErrClosed — there is no separate cancellation
// signal.
func (s *Server) runReaper(ctx context.Context, interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.reapOnce(idleTimeout)
		}
	}
}

func (s *Server) reapOnce(idleTimeout time.Duration) {
	now := time.Now().Unix()
	cutoff := int64(idleTimeout.Seconds())

	s.hub.Lock()
	var victims []*Client
	for _, c := range s.hub.ActiveClients() {
		if now-c.LastActivity > cutoff {
			victims = append(victims, c)
		}
	}
	for _, c := range victims {
		s.hub.LeaveAllSessions(c)
		s.hub.DeactivateClient(c)
	}
	s.hub.Unlock()

	for _, c := range victims {
		s.logger.Info("idle client evicted", "client", c.ID, "idle_for", time.Duration(now-c.LastActivity)*time.Second)
		s.emitEvent("warn", "reap", c.ID, "evicted for inactivity")
	}
}
