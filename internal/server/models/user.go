package models

import "time"

// User is the identity record owned by the persistence layer. The credential
// core only reads it.
type User struct {
	ID           int64
	UserName     string
	PasswordHash string
	RoleID       int64
	CreatedAt    time.Time
}
