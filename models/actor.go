// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The ReliefHub Authors

package models

// Actor is the authenticated identity attached to every request.
// The zero value is the anonymous actor.
type Actor struct {
	UserID int64    `json:"user_id"`
	Login  string   `json:"login"`
	Roles  []string `json:"roles,omitempty"`
	Realm  int64    `json:"realm,omitempty"`
}

// Anonymous reports whether the actor carries no authenticated identity.
func (a Actor) Anonymous() bool {
	return a.UserID == 0
}

// HasRole reports whether the actor carries the named role.
// The admin role implies every other role.
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role || r == RoleAdmin {
			return true
		}
	}
	return false
}

// Well-known role names.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleReader = "reader"
	// RoleSync is granted to peer repositories authenticating against the
	// sync endpoints.
	RoleSync = "sync"
)
