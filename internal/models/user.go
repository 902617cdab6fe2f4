package models

import "time"

type User struct {
	ID           string    `json:"id" db:"id"`
	OrgID        string    `json:"organization_id" db:"organization_id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
