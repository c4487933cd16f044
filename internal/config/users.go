package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UserEntry is a single (username, password) pair, compared as opaque
// bytes by the authenticator. Stronger auth is explicitly out of scope.
type UserEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// UserTable is the static compiled-in-by-config credential table.
type UserTable struct {
	Users []UserEntry `yaml:"users"`
}

// LoadUserTable reads a YAML file of the form:
//
//	users:
//	  - username: alice
//	    password: "12345"
func LoadUserTable(path string) (*UserTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading user table: %w", err)
	}
	var t UserTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing user table: %w", err)
	}
	if len(t.Users) == 0 {
		return nil, fmt.Errorf("user table %q has no entries", path)
	}
	return &t, nil
}
