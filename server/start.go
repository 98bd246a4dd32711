package server

import (
	"context"
	"net/http"
	"os"

	"todo-service/auth"
	cachepackage "todo-service/cache"
	"todo-service/config"
	"todo-service/database"
	"todo-service/handlers"

	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

func StartServer() {
	// Initialize logger
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Todo Service...")

	cfg := config.Load()

	// Initialize database
	dbConn := database.InitializeDatabase(cfg)
	defer dbConn.Close()

	// Initialize cache
	cache := cachepackage.InitializeCache(cfg)
	defer cache.Close()

	// Token authenticator backs both the framework auth hook and the
	// per-handler ownership guards
	authenticator := auth.NewAuthenticator(dbConn, cache)

	// Initialize handlers
	accountHandler := handlers.NewAccountHandler(dbConn, cache, authenticator)
	todoHandler := handlers.NewTodoHandler(dbConn, cache, authenticator)
	itemHandler := handlers.NewTodoItemHandler(dbConn, cache, authenticator)

	// checkAuth resolves "Authorization: Token <key>" to an account for
	// routes registered with AuthType "token"
	checkAuth := func(r *http.Request) (bool, httpserver.RequestAuth) {
		user, err := authenticator.Authenticate(r)
		if err != nil {
			return false, httpserver.RequestAuth{}
		}
		return true, httpserver.RequestAuth{
			Type:   "token",
			Client: user.Username,
			Claims: map[string]interface{}{"user_id": user.ID},
		}
	}

	server := httpserver.New(cfg.Port, checkAuth)

	register := func(name, method, path, authType string, handler httpserver.HandlerFunc) {
		server.Register(httpserver.Route{
			Name:     name,
			Method:   method,
			Path:     path,
			AuthType: authType,
		}, handlers.WithRequestID(handler))
	}

	register("HealthCheck", "GET", "/health", "none",
		httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status": "healthy", "service": "todo-service"}`))
		}))

	// Accounts
	register("Signup", "POST", "/signup", "none", httpserver.HandlerFunc(accountHandler.Signup))
	register("Login", "POST", "/auth/login", "none", httpserver.HandlerFunc(accountHandler.Login))
	register("Logout", "GET", "/auth/logout", "token", httpserver.HandlerFunc(accountHandler.Logout))

	// Todos
	register("ListTodos", "GET", "/todos", "token", httpserver.HandlerFunc(todoHandler.ListTodos))
	register("CreateTodo", "POST", "/todos", "token", httpserver.HandlerFunc(todoHandler.CreateTodo))
	register("GetTodo", "GET", "/todos/{id}", "token", httpserver.HandlerFunc(todoHandler.GetTodo))
	register("UpdateTodo", "PUT", "/todos/{id}", "token", httpserver.HandlerFunc(todoHandler.UpdateTodo))
	register("DeleteTodo", "DELETE", "/todos/{id}", "token", httpserver.HandlerFunc(todoHandler.DeleteTodo))

	// Todo items
	register("CreateTodoItem", "POST", "/todos/{id}/items", "token", httpserver.HandlerFunc(itemHandler.CreateItem))
	register("GetTodoItem", "GET", "/todos/{id}/items/{iid}", "token", httpserver.HandlerFunc(itemHandler.GetItem))
	register("UpdateTodoItem", "PUT", "/todos/{id}/items/{iid}", "token", httpserver.HandlerFunc(itemHandler.UpdateItem))
	register("DeleteTodoItem", "DELETE", "/todos/{id}/items/{iid}", "token", httpserver.HandlerFunc(itemHandler.DeleteItem))

	logger.Info("Todo Service started on port " + cfg.Port)
	logger.Info("Health check: GET /health")
	logger.Info("API endpoints: /signup, /auth/login, /auth/logout, /todos")

	// Start server
	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		os.Exit(1)
	}
}
