package users

import "time"

// User represents a user account for management views. The password digest is
// never projected into this type.
type User struct {
	ID        int64
	Email     string
	Role      string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
