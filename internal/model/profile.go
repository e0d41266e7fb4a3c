package model

import "time"

// Profile is the contact record of a user account. UserID is the owner
// reference every Block points at.
//
// Email is stored lowercased and is unique. PasswordHash is empty for
// accounts created through GitHub, and GitHubID is nil for accounts created
// with a password. Neither is ever serialized to clients.
type Profile struct {
	UserID       string    `json:"userId"    db:"user_id"`
	Email        string    `json:"email"     db:"email"`
	FullName     string    `json:"fullName"  db:"full_name"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	GitHubID     *int64    `json:"-"         db:"github_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
