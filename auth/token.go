// Package auth implements opaque bearer-token authentication. A token is
// a pure lookup key: it carries no claims and maps one-to-one to a user.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"todo-service/models"

	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
)

// AuthScheme is the expected Authorization header scheme: "Token <key>"
const AuthScheme = "Token"

const (
	tokenKeyPrefix = "authtoken:"
	tokenCacheTTL  = 5 * time.Minute
)

// ErrInvalidToken covers every authentication failure: missing header,
// malformed header, unknown or revoked key. Callers map it to 401.
var ErrInvalidToken = errors.New("invalid or missing token")

// Authenticator issues, revokes and validates tokens against the
// auth_tokens table, with a short-TTL cache in front of lookups.
type Authenticator struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewAuthenticator creates an authenticator backed by db and cache
func NewAuthenticator(db *sqlx.DB, cache cache.Cache) *Authenticator {
	return &Authenticator{
		db:    db,
		cache: cache,
	}
}

// generateKey generates an unguessable token key (40 hex chars)
func generateKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue returns the user's existing token key, creating one if absent.
// Get-or-create rides on the UNIQUE(user_id) constraint: INSERT OR IGNORE
// then re-select, so concurrent logins for one user converge on one row.
func (a *Authenticator) Issue(userID int) (string, error) {
	key, err := generateKey()
	if err != nil {
		return "", err
	}

	_, err = a.db.Exec(
		"INSERT OR IGNORE INTO auth_tokens (key, user_id, created_at) VALUES (?, ?, ?)",
		key, userID, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	// Read back whichever row won; on a repeat login this is the old key
	var stored string
	err = a.db.QueryRow("SELECT key FROM auth_tokens WHERE user_id = ?", userID).Scan(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return stored, nil
}

// Revoke deletes the user's token. Returns ErrInvalidToken when the user
// has no token to revoke.
func (a *Authenticator) Revoke(userID int) error {
	var key string
	err := a.db.QueryRow("SELECT key FROM auth_tokens WHERE user_id = ?", userID).Scan(&key)
	if err == sql.ErrNoRows {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	result, err := a.db.Exec("DELETE FROM auth_tokens WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	a.cache.Delete(tokenKeyPrefix + key)

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrInvalidToken
	}
	return nil
}

// Authenticate resolves the request's Authorization header to a user.
// The scheme must be exactly "Token <key>"; anything else fails with
// ErrInvalidToken rather than leaking what was wrong.
func (a *Authenticator) Authenticate(r *http.Request) (*models.User, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrInvalidToken
	}

	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != AuthScheme {
		return nil, ErrInvalidToken
	}
	return a.AuthenticateKey(fields[1])
}

// AuthenticateKey looks up a token key and returns its owner
func (a *Authenticator) AuthenticateKey(key string) (*models.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	// Cache first; entries are stored as JSON strings
	if cached, err := a.cache.Get(tokenKeyPrefix + key); err == nil {
		if user := decodeCachedUser(cached); user != nil {
			return user, nil
		}
	}

	var user models.User
	err := a.db.QueryRow(`
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.created_at, u.updated_at
		FROM users u JOIN auth_tokens t ON t.user_id = u.id
		WHERE t.key = ?`, key).
		Scan(&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName,
			&user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if encoded, err := json.Marshal(user); err == nil {
		a.cache.Set(tokenKeyPrefix+key, string(encoded), tokenCacheTTL)
	}
	return &user, nil
}

// decodeCachedUser handles the value shapes the cache can hand back
// (string from memory, string or bytes from Redis)
func decodeCachedUser(raw interface{}) *models.User {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return nil
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil
	}
	if user.ID == 0 {
		return nil
	}
	return &user
}
