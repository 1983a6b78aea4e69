package domain

import "time"

// User is an authenticated account. Passwords are handled only as bcrypt hashes.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash []byte
	CreatedAt    time.Time
}

// DisplayName returns the name shown next to authored content, falling back to email.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
