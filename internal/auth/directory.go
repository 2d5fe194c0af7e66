// Package auth issues and verifies the demo JWT credentials and resolves
// the authenticated user on incoming requests.
package auth

import "github.com/privara/docsearch/internal/domain"

// directory is the built-in demo user store.
var directory = map[string]domain.User{
	"alice": {Sub: "user:alice", Username: "alice", Role: domain.RoleEmployee, Department: "engineering"},
	"bob":   {Sub: "user:bob", Username: "bob", Role: domain.RoleManager, Department: "hr"},
}

// Authenticate looks up a demo user by username. Returns false when the
// username is unknown.
func Authenticate(username string) (domain.User, bool) {
	u, ok := directory[username]
	return u, ok
}

// RoleForUsername returns the role recorded for a demo username, defaulting
// to employee for unknown names. Used by the local FGA fallback to expand
// user subjects into role subjects.
func RoleForUsername(username string) string {
	if u, ok := directory[username]; ok {
		return u.Role
	}
	return domain.RoleEmployee
}
