package models

import "time"

// User represents an account that can authenticate and post tweets.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt    time.Time `json:"created_at"`
	Email        string    `json:"email" gorm:"index;type:varchar(255)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"` // never serialized
}

// NewUser builds an unpersisted user. The store assigns the ID on insert.
func NewUser(email, passwordHash string) *User {
	return &User{
		CreatedAt:    time.Now().UTC(),
		Email:        email,
		PasswordHash: passwordHash,
	}
}

// UserSummary is returned after a successful registration.
type UserSummary struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
