package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})
	os.Exit(m.Run())
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *sqlx.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "auth_test.db")
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := "../database/migrations"
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read migrations dir: %v", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		script, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("failed to read migration %s: %v", entry.Name(), err)
		}
		if _, err := db.Exec(string(script)); err != nil {
			t.Fatalf("failed to apply migration %s: %v", entry.Name(), err)
		}
	}

	memCache, err := cache.New(cache.Config{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to create memory cache: %v", err)
	}
	t.Cleanup(func() { memCache.Close() })

	return NewAuthenticator(db, memCache), db
}

func createUser(t *testing.T, db *sqlx.DB, username, email string) int {
	t.Helper()
	result, err := db.Exec(
		"INSERT INTO users (username, email, password, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		username, email, "hashed", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	id, _ := result.LastInsertId()
	return int(id)
}

func TestIssueIsIdempotentPerUser(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	userID := createUser(t, db, "foo", "foo@bar.com")

	first, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	if first == "" {
		t.Fatal("issued an empty key")
	}

	second, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}
	if first != second {
		t.Fatalf("issue created a second token: %q vs %q", first, second)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM auth_tokens WHERE user_id = ?", userID).Scan(&count); err != nil {
		t.Fatalf("failed to count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one token row, got %d", count)
	}
}

func TestIssueDistinctKeysPerUser(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	fooID := createUser(t, db, "foo", "foo@bar.com")
	barID := createUser(t, db, "bar", "bar@foo.com")

	fooKey, err := authenticator.Issue(fooID)
	if err != nil {
		t.Fatalf("issue for foo failed: %v", err)
	}
	barKey, err := authenticator.Issue(barID)
	if err != nil {
		t.Fatalf("issue for bar failed: %v", err)
	}
	if fooKey == barKey {
		t.Fatal("two users got the same token key")
	}
}

func TestAuthenticateKeyResolvesOwner(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	userID := createUser(t, db, "foo", "foo@bar.com")
	key, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Twice: second resolution comes from the cache
	for i := 0; i < 2; i++ {
		user, err := authenticator.AuthenticateKey(key)
		if err != nil {
			t.Fatalf("authenticate attempt %d failed: %v", i+1, err)
		}
		if user.ID != userID || user.Username != "foo" {
			t.Fatalf("token resolved to %+v, want user %d", user, userID)
		}
	}
}

func TestAuthenticateUnknownKey(t *testing.T) {
	authenticator, _ := newTestAuthenticator(t)

	if _, err := authenticator.AuthenticateKey("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateHeaderParsing(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	userID := createUser(t, db, "foo", "foo@bar.com")
	key, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	cases := []struct {
		name   string
		header string
		valid  bool
	}{
		{"valid", "Token " + key, true},
		{"missing header", "", false},
		{"bearer scheme", "Bearer " + key, false},
		{"lowercase scheme", "token " + key, false},
		{"scheme only", "Token", false},
		{"extra field", "Token " + key + " extra", false},
		{"key only", key, false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/todos", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}

		user, err := authenticator.Authenticate(req)
		if tc.valid {
			if err != nil {
				t.Fatalf("%s: expected success, got %v", tc.name, err)
			}
			if user.ID != userID {
				t.Fatalf("%s: resolved wrong user %d", tc.name, user.ID)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	userID := createUser(t, db, "foo", "foo@bar.com")
	key, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	// Warm the cache so revoke has a cached entry to clear
	if _, err := authenticator.AuthenticateKey(key); err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	if err := authenticator.Revoke(userID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, err := authenticator.AuthenticateKey(key); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}

	// Nothing left to revoke
	if err := authenticator.Revoke(userID); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on second revoke, got %v", err)
	}
}

func TestIssueAfterRevokeCreatesNewKey(t *testing.T) {
	authenticator, db := newTestAuthenticator(t)
	userID := createUser(t, db, "foo", "foo@bar.com")

	first, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if err := authenticator.Revoke(userID); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	second, err := authenticator.Issue(userID)
	if err != nil {
		t.Fatalf("re-issue failed: %v", err)
	}
	if first == second {
		t.Fatal("re-issued the revoked key")
	}
}
