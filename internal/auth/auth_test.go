package auth

import (
	"testing"

	"github.com/haldane-labs/confrelay/internal/config"
)

func testTable() *config.UserTable {
	return &config.UserTable{Users: []config.UserEntry{
		{Username: "alice", Password: "12345"},
		{Username: "bob", Password: "hunter2"},
	}}
}

func TestAuthenticateSuccess(t *testing.T) {
	a := New(testTable())
	if !a.Authenticate("alice", "12345") {
		t.Fatal("expected alice/12345 to authenticate")
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	a := New(testTable())
	if a.Authenticate("alice", "wrong") {
		t.Fatal("expected wrong password to be rejected")
	}
}

func TestAuthenticateUnknownUser(t *testing.T) {
	a := New(testTable())
	if a.Authenticate("mallory", "anything") {
		t.Fatal("expected unknown user to be rejected")
	}
}

func TestExists(t *testing.T) {
	a := New(testTable())
	if !a.Exists("bob") {
		t.Fatal("expected bob to exist")
	}
	if a.Exists("mallory") {
		t.Fatal("expected mallory to not exist")
	}
}
