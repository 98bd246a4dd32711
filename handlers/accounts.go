package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"todo-service/auth"
	"todo-service/models"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AccountHandler handles signup, login and logout
type AccountHandler struct {
	db    *sqlx.DB
	cache cache.Cache
	auth  *auth.Authenticator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(db *sqlx.DB, cache cache.Cache, authenticator *auth.Authenticator) *AccountHandler {
	return &AccountHandler{
		db:    db,
		cache: cache,
		auth:  authenticator,
	}
}

// Signup handles POST /signup - register a new account
func (h *AccountHandler) Signup(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" || req.Password2 == "" {
		logRequest(ctx, "error", "Missing required fields", zap.String("username", req.Username))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("username, email, password and password2 are required"))
		return
	}

	// Confirmation check runs before anything else; other field validity
	// does not matter if the passwords disagree
	if req.Password != req.Password2 {
		logRequest(ctx, "error", "Password confirmation mismatch", zap.String("username", req.Username))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("password: Password fields didn't match."))
		return
	}

	var count int
	if err := h.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", req.Username).Scan(&count); err != nil {
		logRequest(ctx, "error", "Failed to check username", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if count > 0 {
		logRequest(ctx, "info", "Username already taken", zap.String("username", req.Username))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("username: A user with that username already exists."))
		return
	}
	if err := h.db.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", req.Email).Scan(&count); err != nil {
		logRequest(ctx, "error", "Failed to check email", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	if count > 0 {
		logRequest(ctx, "info", "Email already taken", zap.String("email", req.Email))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("email: A user with that email already exists."))
		return
	}

	logRequest(ctx, "info", "Registering user", zap.String("username", req.Username))

	// Hash password with bcrypt (cost 12); plaintext is never stored
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		logRequest(ctx, "error", "Password hashing failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to process password"))
		return
	}

	result, err := h.db.Exec(
		"INSERT INTO users (username, email, password, first_name, last_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		req.Username, req.Email, string(hashedPassword), req.FirstName, req.LastName, time.Now(), time.Now())
	if err != nil {
		// The UNIQUE constraints are the race-proof backstop behind the
		// duplicate checks above
		if isUniqueViolation(err) {
			logRequest(ctx, "info", "Duplicate user on insert", zap.String("username", req.Username))
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(errs.NewValidationError("A user with that username or email already exists."))
			return
		}
		logRequest(ctx, "error", "Failed to create user", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create user"))
		return
	}

	id, _ := result.LastInsertId()
	logRequest(ctx, "info", "User registered successfully", zap.Int("user_id", int(id)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.RegisterResponse{
		Message: "User registered successfully",
		UserID:  int(id),
	})
}

// Login handles POST /auth/login - verify credentials and issue a token.
// The same 401 is returned whether the username or the password was wrong.
func (h *AccountHandler) Login(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	var user models.User
	err := h.db.QueryRow("SELECT id, username, password FROM users WHERE username = ?", req.Username).
		Scan(&user.ID, &user.Username, &user.Password)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Login failed: unknown username", zap.String("username", req.Username))
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid username or password"))
		return
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query user", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Server error"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logRequest(ctx, "info", "Login failed: wrong password", zap.String("username", req.Username))
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid username or password"))
		return
	}

	// Get-or-create: repeated logins return the existing key
	token, err := h.auth.Issue(user.ID)
	if err != nil {
		logRequest(ctx, "error", "Token issuance failed", zap.Error(err), zap.Int("user_id", user.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to issue token"))
		return
	}

	logRequest(ctx, "info", "Login successful", zap.Int("user_id", user.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.LoginResponse{
		Token:  token,
		UserID: user.ID,
	})
}

// Logout handles GET /auth/logout - revoke the caller's token.
// A second logout finds no token to authenticate with and gets 401.
func (h *AccountHandler) Logout(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	user, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}

	if err := h.auth.Revoke(user.ID); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			logRequest(ctx, "info", "No token to revoke", zap.Int("user_id", user.ID))
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid or missing authentication token"))
			return
		}
		logRequest(ctx, "error", "Failed to revoke token", zap.Error(err), zap.Int("user_id", user.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to log out"))
		return
	}

	logRequest(ctx, "info", "Logged out", zap.Int("user_id", user.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "Logged out successfully"})
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
