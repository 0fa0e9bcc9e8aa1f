package mockbackend

import (
	"fmt"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/auth/password"
	"github.com/ylai/autoplatform/errors"
)

// Account is a built-in login.
type Account struct {
	Username string
	Password string
	Role     auth.Role
}

// DefaultAccounts are the demo logins, one per role.
var DefaultAccounts = []Account{
	{Username: "yeling", Password: "yeling", Role: auth.RoleSuperadmin},
	{Username: "admin", Password: "admin", Role: auth.RoleAdmin},
	{Username: "yangyang", Password: "yangyang", Role: auth.RoleUser},
}

type user struct {
	role auth.Role
	hash string
}

// Users verifies credentials against bcrypt hashes.
type Users struct {
	hasher password.Hasher
	users  map[string]user
}

// NewUsers hashes accounts with hasher.
func NewUsers(hasher password.Hasher, accounts []Account) (*Users, error) {
	u := &Users{hasher: hasher, users: make(map[string]user, len(accounts))}
	for _, a := range accounts {
		hash, err := hasher.Hash(a.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password of %s: %w", a.Username, err)
		}
		u.users[a.Username] = user{role: a.Role, hash: hash}
	}
	return u, nil
}

// Authenticate returns the role of username when password matches.
func (u *Users) Authenticate(username, pw string) (auth.Role, error) {
	usr, ok := u.users[username]
	if !ok {
		// Same answer as a wrong password.
		return "", errors.Unauthorized("invalid username or password")
	}
	if err := u.hasher.Verify(pw, usr.hash); err != nil {
		return "", errors.Unauthorized("invalid username or password")
	}
	return usr.role, nil
}
