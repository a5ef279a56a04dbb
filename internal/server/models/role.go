package models

// Well-known role names seeded at startup.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type Role struct {
	ID          int64
	Name        string
	Description string
}
