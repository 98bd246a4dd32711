package models

import "time"

// Todo is a named list of items owned by exactly one user.
// UserID is set from the authenticated caller at creation and never
// changes afterwards; it is not client-settable.
type Todo struct {
	ID          int        `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	UserID      int        `json:"user" db:"user_id"`
	Items       []TodoItem `json:"items"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TodoItem is a unit of work inside a todo. TodoID is set from the URL
// path at creation, never from the payload.
type TodoItem struct {
	ID         int       `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	TodoID     int       `json:"todo" db:"todo_id"`
	IsComplete bool      `json:"is_complete" db:"is_complete"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// TodoRequest is the body for creating or fully replacing a todo.
// Description defaults to "". Any owner field in the payload is ignored.
type TodoRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TodoItemRequest is the body for creating or fully replacing an item.
// IsComplete defaults to false (also on PUT, full-replace semantics).
type TodoItemRequest struct {
	Name       string `json:"name"`
	IsComplete bool   `json:"is_complete"`
}

// MessageResponse is the generic mutation success payload
type MessageResponse struct {
	Message string `json:"message"`
}

// CreatedResponse is the success payload for creations, carrying the new id
type CreatedResponse struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
}
