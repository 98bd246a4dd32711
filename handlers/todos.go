package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"todo-service/auth"
	"todo-service/models"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/errs"
	"go.uber.org/zap"
)

const (
	todoListKeyPrefix = "todos:user:"
	todoListTTL       = 5 * time.Minute
)

// TodoHandler handles todo CRUD. Every read and write on a single todo
// goes through resolveTodo, so GET, PUT and DELETE share one ownership
// check instead of each handler rolling its own.
type TodoHandler struct {
	db    *sqlx.DB
	cache cache.Cache
	auth  *auth.Authenticator
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(db *sqlx.DB, cache cache.Cache, authenticator *auth.Authenticator) *TodoHandler {
	return &TodoHandler{
		db:    db,
		cache: cache,
		auth:  authenticator,
	}
}

// listCacheKey is derived from the authenticated caller, never from
// client input, so a cached list can only ever serve its owner
func listCacheKey(userID int) string {
	return todoListKeyPrefix + strconv.Itoa(userID)
}

// resolveTodo is the authorization guard: {id} -> todo row (404 when it
// does not exist), then owner == caller (403 otherwise). On failure the
// response has been written and ok is false.
func resolveTodo(ctx context.Context, w http.ResponseWriter, r *http.Request, db *sqlx.DB, caller *models.User) (*models.Todo, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid todo ID", zap.String("id", idStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid todo ID"))
		return nil, false
	}

	var todo models.Todo
	err = db.QueryRow(
		"SELECT id, name, description, user_id, created_at, updated_at FROM todos WHERE id = ?", id).
		Scan(&todo.ID, &todo.Name, &todo.Description, &todo.UserID, &todo.CreatedAt, &todo.UpdatedAt)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Todo not found", zap.Int("todo_id", id))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Todo not found"))
		return nil, false
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query todo", zap.Error(err), zap.Int("todo_id", id))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return nil, false
	}

	if todo.UserID != caller.ID {
		logRequest(ctx, "info", "Ownership check failed",
			zap.Int("todo_id", todo.ID), zap.Int("owner_id", todo.UserID), zap.Int("caller_id", caller.ID))
		forbidden(w)
		return nil, false
	}
	return &todo, true
}

// loadItems returns a todo's items in creation order
func loadItems(db *sqlx.DB, todoID int) ([]models.TodoItem, error) {
	rows, err := db.Query(
		"SELECT id, name, is_complete, todo_id, created_at, updated_at FROM todo_items WHERE todo_id = ? ORDER BY id", todoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.TodoItem{}
	for rows.Next() {
		var item models.TodoItem
		if err := rows.Scan(&item.ID, &item.Name, &item.IsComplete, &item.TodoID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListTodos handles GET /todos - the caller's todos with nested items
func (h *TodoHandler) ListTodos(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}

	// Try cache first
	cacheKey := listCacheKey(caller.ID)
	if cached, err := h.cache.Get(cacheKey); err == nil {
		if body := cachedBytes(cached); body != nil {
			logRequest(ctx, "debug", "Serving todo list from cache", zap.Int("user_id", caller.ID))
			w.Header().Set("Content-Type", "application/json")
			w.Write(body)
			return
		}
	}

	rows, err := h.db.Query(
		"SELECT id, name, description, user_id, created_at, updated_at FROM todos WHERE user_id = ? ORDER BY id", caller.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to query todos", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		var todo models.Todo
		if err := rows.Scan(&todo.ID, &todo.Name, &todo.Description, &todo.UserID, &todo.CreatedAt, &todo.UpdatedAt); err != nil {
			logRequest(ctx, "error", "Failed to scan todo", zap.Error(err))
			continue
		}
		todos = append(todos, todo)
	}

	for i := range todos {
		items, err := loadItems(h.db, todos[i].ID)
		if err != nil {
			logRequest(ctx, "error", "Failed to load items", zap.Error(err), zap.Int("todo_id", todos[i].ID))
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
			return
		}
		todos[i].Items = items
	}

	response, _ := json.Marshal(todos)
	h.cache.Set(cacheKey, string(response), todoListTTL)

	logRequest(ctx, "info", "Todos retrieved successfully", zap.Int("count", len(todos)))

	w.Header().Set("Content-Type", "application/json")
	w.Write(response)
}

// CreateTodo handles POST /todos. The owner is always the caller; any
// owner field in the payload is ignored.
func (h *TodoHandler) CreateTodo(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}

	var req models.TodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}

	if req.Name == "" {
		logRequest(ctx, "error", "Missing todo name")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("name: This field is required."))
		return
	}

	result, err := h.db.Exec(
		"INSERT INTO todos (name, description, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		req.Name, req.Description, caller.ID, time.Now(), time.Now())
	if err != nil {
		logRequest(ctx, "error", "Failed to create todo", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create todo"))
		return
	}

	id, _ := result.LastInsertId()
	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Todo created successfully", zap.Int("todo_id", int(id)), zap.Int("user_id", caller.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.CreatedResponse{
		Message: "Todo created successfully",
		ID:      int(id),
	})
}

// GetTodo handles GET /todos/{id}
func (h *TodoHandler) GetTodo(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}

	items, err := loadItems(h.db, todo.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to load items", zap.Error(err), zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return
	}
	todo.Items = items

	logRequest(ctx, "info", "Todo retrieved successfully", zap.Int("todo_id", todo.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(todo)
}

// UpdateTodo handles PUT /todos/{id} - full replace of the mutable
// fields; id and owner are untouchable.
func (h *TodoHandler) UpdateTodo(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}

	var req models.TodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}
	if req.Name == "" {
		logRequest(ctx, "error", "Missing todo name", zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("name: This field is required."))
		return
	}

	_, err := h.db.Exec(
		"UPDATE todos SET name = ?, description = ?, updated_at = ? WHERE id = ?",
		req.Name, req.Description, time.Now(), todo.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to update todo", zap.Error(err), zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update todo"))
		return
	}

	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Todo updated successfully", zap.Int("todo_id", todo.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "Todo updated successfully"})
}

// DeleteTodo handles DELETE /todos/{id} - delete the todo and cascade to
// its items in one transaction
func (h *TodoHandler) DeleteTodo(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		logRequest(ctx, "error", "Failed to begin transaction", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete todo"))
		return
	}
	if _, err := tx.Exec("DELETE FROM todo_items WHERE todo_id = ?", todo.ID); err == nil {
		_, err = tx.Exec("DELETE FROM todos WHERE id = ?", todo.ID)
	}
	if err == nil {
		err = tx.Commit()
	} else {
		tx.Rollback()
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to delete todo", zap.Error(err), zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete todo"))
		return
	}

	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Todo deleted successfully", zap.Int("todo_id", todo.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "Todo deleted successfully"})
}

// cachedBytes normalizes the value shapes the cache can return
func cachedBytes(raw interface{}) []byte {
	switch v := raw.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	}
	return nil
}
