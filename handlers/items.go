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

// TodoItemHandler handles items nested under a todo. Every operation
// runs the two-step guard: caller owns the todo at {id}, and the item at
// {iid} actually belongs to that todo.
type TodoItemHandler struct {
	db    *sqlx.DB
	cache cache.Cache
	auth  *auth.Authenticator
}

// NewTodoItemHandler creates a new item handler
func NewTodoItemHandler(db *sqlx.DB, cache cache.Cache, authenticator *auth.Authenticator) *TodoItemHandler {
	return &TodoItemHandler{
		db:    db,
		cache: cache,
		auth:  authenticator,
	}
}

// resolveItem is step two of the guard, run after resolveTodo: {iid} ->
// item row (404 when it exists nowhere), then item.todo == the todo from
// the path (400 mismatch otherwise — the todo itself was valid).
func resolveItem(ctx context.Context, w http.ResponseWriter, r *http.Request, db *sqlx.DB, todo *models.Todo) (*models.TodoItem, bool) {
	iidStr := mux.Vars(r)["iid"]
	iid, err := strconv.Atoi(iidStr)
	if err != nil {
		logRequest(ctx, "error", "Invalid item ID", zap.String("iid", iidStr))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid item ID"))
		return nil, false
	}

	var item models.TodoItem
	err = db.QueryRow(
		"SELECT id, name, is_complete, todo_id, created_at, updated_at FROM todo_items WHERE id = ?", iid).
		Scan(&item.ID, &item.Name, &item.IsComplete, &item.TodoID, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		logRequest(ctx, "info", "Item not found", zap.Int("item_id", iid))
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(errs.NewNotFoundError("Item not found"))
		return nil, false
	}
	if err != nil {
		logRequest(ctx, "error", "Failed to query item", zap.Error(err), zap.Int("item_id", iid))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Database error"))
		return nil, false
	}

	if item.TodoID != todo.ID {
		logRequest(ctx, "info", "Item belongs to a different todo",
			zap.Int("item_id", item.ID), zap.Int("item_todo_id", item.TodoID), zap.Int("todo_id", todo.ID))
		itemMismatch(w)
		return nil, false
	}
	return &item, true
}

// CreateItem handles POST /todos/{id}/items. The parent todo comes from
// the path, never from the payload.
func (h *TodoItemHandler) CreateItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}

	var req models.TodoItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}
	if req.Name == "" {
		logRequest(ctx, "error", "Missing item name", zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("name: This field is required."))
		return
	}

	result, err := h.db.Exec(
		"INSERT INTO todo_items (name, is_complete, todo_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		req.Name, req.IsComplete, todo.ID, time.Now(), time.Now())
	if err != nil {
		logRequest(ctx, "error", "Failed to create item", zap.Error(err), zap.Int("todo_id", todo.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to create item"))
		return
	}

	id, _ := result.LastInsertId()
	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Item created successfully", zap.Int("item_id", int(id)), zap.Int("todo_id", todo.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.CreatedResponse{
		Message: "Item created successfully",
		ID:      int(id),
	})
}

// GetItem handles GET /todos/{id}/items/{iid}
func (h *TodoItemHandler) GetItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}
	item, ok := resolveItem(ctx, w, r, h.db, todo)
	if !ok {
		return
	}

	logRequest(ctx, "info", "Item retrieved successfully", zap.Int("item_id", item.ID))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

// UpdateItem handles PUT /todos/{id}/items/{iid} - full replace; an
// omitted is_complete resets to false
func (h *TodoItemHandler) UpdateItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}
	item, ok := resolveItem(ctx, w, r, h.db, todo)
	if !ok {
		return
	}

	var req models.TodoItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRequest(ctx, "error", "Invalid request body", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("Invalid JSON"))
		return
	}
	if req.Name == "" {
		logRequest(ctx, "error", "Missing item name", zap.Int("item_id", item.ID))
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(errs.NewValidationError("name: This field is required."))
		return
	}

	_, err := h.db.Exec(
		"UPDATE todo_items SET name = ?, is_complete = ?, updated_at = ? WHERE id = ?",
		req.Name, req.IsComplete, time.Now(), item.ID)
	if err != nil {
		logRequest(ctx, "error", "Failed to update item", zap.Error(err), zap.Int("item_id", item.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to update item"))
		return
	}

	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Item updated successfully", zap.Int("item_id", item.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "Item updated successfully"})
}

// DeleteItem handles DELETE /todos/{id}/items/{iid}
func (h *TodoItemHandler) DeleteItem(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	caller, ok := authenticateRequest(ctx, w, r, h.auth)
	if !ok {
		return
	}
	todo, ok := resolveTodo(ctx, w, r, h.db, caller)
	if !ok {
		return
	}
	item, ok := resolveItem(ctx, w, r, h.db, todo)
	if !ok {
		return
	}

	if _, err := h.db.Exec("DELETE FROM todo_items WHERE id = ?", item.ID); err != nil {
		logRequest(ctx, "error", "Failed to delete item", zap.Error(err), zap.Int("item_id", item.ID))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errs.NewInternalServerError("Failed to delete item"))
		return
	}

	h.cache.Delete(listCacheKey(caller.ID))

	logRequest(ctx, "info", "Item deleted successfully", zap.Int("item_id", item.ID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.MessageResponse{Message: "Item deleted successfully"})
}
