package domain

import "time"

// User is a staff identity. Username is the token subject.
type User struct {
	ID           string
	Username     string
	Email        string
	Name         string // optional display name
	PasswordHash string // bcrypt or argon2id encoded
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the authenticated view of a user that flows through the gate
// and out of the profile endpoint. It never carries the password hash.
type Identity struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

// Identity strips the credential material from u.
func (u User) Identity() Identity {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return Identity{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Name:     u.Name,
		Roles:    roles,
	}
}

// Subject is the token subject for this identity.
func (i Identity) Subject() string { return i.Username }
