package models

import "time"

// AuthToken is the opaque bearer credential for one account.
// Key carries no claims; it is purely a lookup key. One row per user
// (unique user_id), created on first login and deleted on logout.
type AuthToken struct {
	ID        int       `json:"id" db:"id"`
	Key       string    `json:"key" db:"key"`
	UserID    int       `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
