package domain

import "time"

// Built-in role names. Anything else is a custom role that only implies itself.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleEmployee = "employee"
)

type Role struct {
	ID        string
	Name      string // always lowercase
	CreatedAt time.Time
}
