package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"todo-service/auth"
	"todo-service/models"

	"github.com/google/uuid"
	"github.com/umakantv/go-utils/errs"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// WithRequestID assigns a UUID to each request, exposes it as X-Request-ID
// and threads it through the context so logRequest can correlate lines.
func WithRequestID(next httpserver.HandlerFunc) httpserver.HandlerFunc {
	return httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)
		next(context.WithValue(ctx, requestIDKey{}, requestID), w, r)
	})
}

// logRequest logs the request with route/auth details from the httpserver
// context plus the request id. Shared by all handlers in this package.
func logRequest(ctx context.Context, level string, message string, fields ...zap.Field) {
	routeName := httpserver.GetRouteName(ctx)
	method := httpserver.GetRouteMethod(ctx)
	path := httpserver.GetRoutePath(ctx)
	reqAuth := httpserver.GetRequestAuth(ctx)

	// Build log message (timestamp - route - method - path - client)
	logMsg := time.Now().Format("2006-01-02 15:04:05") + " - " + routeName + " - " + method + " - " + path
	if reqAuth != nil {
		logMsg += " - user:" + reqAuth.Client
	}
	if message != "" {
		logMsg += " - " + message
	}

	allFields := append([]zap.Field{
		zap.String("route", routeName),
		zap.String("method", method),
		zap.String("path", path),
	}, fields...)
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		allFields = append(allFields, zap.String("request_id", requestID))
	}

	switch level {
	case "info":
		logger.Info(logMsg, allFields...)
	case "error":
		logger.Error(logMsg, allFields...)
	case "debug":
		logger.Debug(logMsg, allFields...)
	}
}

// authenticateRequest resolves the caller from the Authorization header.
// On failure it writes the response (401, or 500 on a store error) and
// returns false; handlers just return.
func authenticateRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, a *auth.Authenticator) (*models.User, bool) {
	user, err := a.Authenticate(r)
	if err == nil {
		return user, true
	}

	w.Header().Set("Content-Type", "application/json")
	if errors.Is(err, auth.ErrInvalidToken) {
		logRequest(ctx, "info", "Unauthenticated request")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errs.NewAuthenticationError("Invalid or missing authentication token"))
		return nil, false
	}

	logRequest(ctx, "error", "Token lookup failed", zap.Error(err))
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(errs.NewInternalServerError("Server error"))
	return nil, false
}

// forbidden writes the ownership-mismatch response. Existence is not
// hidden from non-owners; only access is denied.
func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "You do not have access to this resource.",
	})
}

// itemMismatch writes the "item exists but under a different todo" response.
// The todo in the path was valid, so this is a client error, not a 404.
func itemMismatch(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "The todo has no item matching the iid provided.",
	})
}
