package auth

import "time"

// Recognized account roles. Every new signup starts as RoleUser; RoleAdmin is
// granted through the provisioning path, never through signup.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. PasswordDigest holds the hashed
// password only; plaintext is never stored.
type User struct {
	ID             int64
	Email          string
	PasswordDigest string
	Role           string
	FirstName      string
	LastName       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile is the projection of User handed to display code. It deliberately
// omits the password digest.
type Profile struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Profile returns the display projection of the user.
func (u *User) Profile() *Profile {
	return &Profile{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
