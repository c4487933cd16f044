// Package auth implements the conferencing server's credential check
// against a static, compiled-in-by-config user table.
package auth

import (
	"crypto/subtle"

	"github.com/haldane-labs/confrelay/internal/config"
)

// Authenticator holds the static (username, password) table loaded at
// startup. It does not protect against timing side channels — stronger
// auth is out of scope here — though comparisons use constant-time
// equality as a matter of habit, not a guarantee.
type Authenticator struct {
	passwords map[string]string
}

// New builds an Authenticator from a loaded user table.
func New(table *config.UserTable) *Authenticator {
	a := &Authenticator{passwords: make(map[string]string, len(table.Users))}
	for _, u := range table.Users {
		a.passwords[u.Username] = u.Password
	}
	return a
}

// Authenticate reports whether username/password match an entry in the
// table, by byte-equality. An unknown username always fails.
func (a *Authenticator) Authenticate(username, password string) bool {
	want, ok := a.passwords[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}

// Exists reports whether username is present in the table, independent of
// the supplied password — used only by tests and diagnostics, never by the
// login path itself (which must check the password too).
func (a *Authenticator) Exists(username string) bool {
	_, ok := a.passwords[username]
	return ok
}
