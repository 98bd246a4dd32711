package handlers

import (
	"net/http"
	"testing"
)

func TestSignupWithNonMatchingPasswordFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/signup", "", map[string]string{
		"username":  "test",
		"email":     "test@todoapi.com",
		"password":  "string",
		"password2": "different_string",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		t.Fatalf("failed to count users: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no users after rejected signup, got %d", count)
	}
}

func TestSignupPersistsUser(t *testing.T) {
	env := newTestEnv(t)

	userID := env.signup(t, "test", "test@todoapi.com", "string")

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", userID).Scan(&count); err != nil {
		t.Fatalf("failed to query user: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected user %d to exist", userID)
	}

	// Plaintext must never be stored
	var stored string
	if err := env.db.QueryRow("SELECT password FROM users WHERE id = ?", userID).Scan(&stored); err != nil {
		t.Fatalf("failed to query password: %v", err)
	}
	if stored == "string" {
		t.Fatal("password stored in plaintext")
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "foo", "foo@bar.com", "bar")

	rec := env.doJSON(t, http.MethodPost, "/signup", "", map[string]string{
		"username":  "foo",
		"email":     "other@bar.com",
		"password":  "bar",
		"password2": "bar",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate username, got %d", rec.Code)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "foo", "foo@bar.com", "bar")

	rec := env.doJSON(t, http.MethodPost, "/signup", "", map[string]string{
		"username":  "other",
		"email":     "foo@bar.com",
		"password":  "bar",
		"password2": "bar",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", rec.Code)
	}
}

func TestLoginWithIncorrectCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "foo", "foo@bar.com", "bar")

	rec := env.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "foo",
		"password": "not_bar",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec = env.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody",
		"password": "bar",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown username, got %d", rec.Code)
	}
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	env := newTestEnv(t)
	userID := env.signup(t, "foo", "foo@bar.com", "bar")

	token := env.login(t, "foo", "bar")

	user, err := env.auth.AuthenticateKey(token)
	if err != nil {
		t.Fatalf("authenticate(token) failed: %v", err)
	}
	if user.ID != userID {
		t.Fatalf("token resolved to user %d, want %d", user.ID, userID)
	}
}

func TestRepeatedLoginReusesToken(t *testing.T) {
	env := newTestEnv(t)
	userID := env.signup(t, "foo", "foo@bar.com", "bar")

	first := env.login(t, "foo", "bar")
	second := env.login(t, "foo", "bar")
	if first != second {
		t.Fatalf("repeated login issued a different token")
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM auth_tokens WHERE user_id = ?", userID).Scan(&count); err != nil {
		t.Fatalf("failed to count tokens: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one token, got %d", count)
	}
}

func TestUnauthorizedLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/auth/logout", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "foo", "foo@bar.com", "bar")
	token := env.login(t, "foo", "bar")

	rec := env.doJSON(t, http.MethodGet, "/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var count int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM auth_tokens").Scan(&count); err != nil {
		t.Fatalf("failed to count tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected token to be deleted, found %d", count)
	}

	// Repeating logout has no token left to authenticate with
	rec = env.doJSON(t, http.MethodGet, "/auth/logout", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on second logout, got %d", rec.Code)
	}
}
