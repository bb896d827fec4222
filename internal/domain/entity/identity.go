package entity

import (
	"strings"
	"time"
)

// Identity is the aggregate root for the identity domain. PasswordHash holds
// the bcrypt digest and stays inside the process: handlers serialize Profile,
// which has no password field at all.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the external representation of an Identity.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the public view of the identity.
func (i *Identity) Profile() Profile {
	return Profile{
		ID:        i.ID,
		Email:     i.Email,
		Name:      i.Name,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

// ProfileUpdate carries the mutable profile fields. Nil leaves a field as is.
// Email and password are not mutable through profile updates.
type ProfileUpdate struct {
	Name *string
}

// NormalizeEmail lower-cases and trims an email address. Emails are stored
// and looked up in normalized form only.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
