package models

import "time"

// User represents a registered account.
// Password is stored hashed (bcrypt); never return it in JSON responses
type User struct {
	ID        int       `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Email     string    `json:"email" db:"email"`
	Password  string    `json:"-" db:"password"` // Hashed; omitted from JSON
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RegisterRequest is the POST /signup body.
// Password2 must match Password; first/last name are optional
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"` // Plaintext; hashed in the handler
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// RegisterResponse is the POST /signup success payload
type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int    `json:"user_id"`
}

// LoginRequest is the POST /auth/login body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token key and the account id
type LoginResponse struct {
	Token  string `json:"token"`
	UserID int    `json:"user_id"`
}
