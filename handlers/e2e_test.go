package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"todo-service/models"
)

// TestFullUserFlow walks the whole API surface in one session: register,
// login, create a todo with one item, read it back, delete the todo and
// confirm both the todo and its item are gone.
func TestFullUserFlow(t *testing.T) {
	env := newTestEnv(t)

	env.signup(t, "foo", "foo@bar.com", "bar")
	token := env.login(t, "foo", "bar")

	todoID := env.createTodo(t, token, "x", "")
	itemID := env.createItem(t, token, todoID, "y")

	rec := env.doJSON(t, http.MethodGet, todoPath(todoID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get todo returned %d: %s", rec.Code, rec.Body.String())
	}
	var todo models.Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &todo); err != nil {
		t.Fatalf("failed to decode todo: %v", err)
	}
	if todo.Name != "x" {
		t.Fatalf("todo name = %q, want x", todo.Name)
	}
	if len(todo.Items) != 1 || todo.Items[0].Name != "y" {
		t.Fatalf("expected one nested item named y, got %+v", todo.Items)
	}

	rec = env.doJSON(t, http.MethodDelete, todoPath(todoID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete todo returned %d", rec.Code)
	}

	rec = env.doJSON(t, http.MethodGet, todoPath(todoID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted todo: expected 404, got %d", rec.Code)
	}

	// The item went with the todo; its old path now 404s on the parent
	rec = env.doJSON(t, http.MethodGet, itemPath(todoID, itemID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get item of deleted todo: expected 404, got %d", rec.Code)
	}

	rec = env.doJSON(t, http.MethodGet, "/auth/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", rec.Code)
	}
	rec = env.doJSON(t, http.MethodGet, "/todos", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token still works: got %d", rec.Code)
	}
}
