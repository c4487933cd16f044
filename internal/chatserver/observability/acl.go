// Package observability implements the read-only HTTP diagnostics
// endpoint for the conferencing server: an IP/CIDR-gated snapshot API
// backed by a bounded, persisted event log.
package observability

import (
	"net"
	"net/http"
)

// ACL enforces IP/CIDR access control on the observability endpoint.
// It is deny-by-default: only remote addresses contained in at least
// one configured CIDR are let through.
type ACL struct {
	nets []*net.IPNet
}

// NewACL builds an ACL from pre-parsed CIDRs, typically
// config.WebUIConfig.ParsedCIDRs.
func NewACL(cidrs []*net.IPNet) *ACL {
	return &ACL{nets: cidrs}
}

// Middleware wraps next with the ACL check, responding 403 Forbidden to
// any request from a disallowed remote address.
func (a *ACL) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Allowed(r.RemoteAddr) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allowed reports whether a host:port (or bare host) remote address is
// permitted by the ACL.
func (a *ACL) Allowed(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, cidr := range a.nets {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
