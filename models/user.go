package models

import (
	"strings"
	"time"
)

// User is an account row of the auth_user table used for authentication
// and permission checks. PasswordHash must always be a derived value
// (HMAC-SHA256 of the password under the configured key), never plaintext.
type User struct {
	// UserID is the internal unique identifier of the user.
	UserID int64 `json:"-"`

	// Login is the unique login identifier used during authentication.
	Login string `json:"login"`

	// Name is the display name of the user.
	Name string `json:"name"`

	// PasswordHash is the derived credential value compared on login.
	PasswordHash string `json:"-"`

	// Roles is the comma-separated role list granted to the user
	// (see RoleAdmin, RoleEditor, RoleReader, RoleSync).
	Roles string `json:"roles"`

	// Realm is the realm entity the user belongs to; rows outside the
	// actor's realm may be filtered by per-resource configuration.
	Realm int64 `json:"realm"`

	// CreatedOn is the account creation timestamp.
	CreatedOn time.Time `json:"created_on"`
}

// TableName returns the name of the database table associated with User.
func (u User) TableName() string {
	return "auth_user"
}

// Actor converts the account row into the request actor identity.
func (u User) Actor() Actor {
	var roles []string
	for _, r := range strings.Split(u.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return Actor{UserID: u.UserID, Login: u.Login, Roles: roles, Realm: u.Realm}
}
