package models

import "time"

// Session is the denormalized user snapshot held server-side for the lifetime
// of a login. It is a cache, not a source of truth: it is never refreshed from
// the users table after creation, so profile changes become visible only on
// the next login.
type Session struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	OrgID     string    `json:"organization_id"`
	OrgName   string    `json:"organization_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
