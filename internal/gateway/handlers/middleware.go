package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/mrmushfiq/llm-task-router/internal/shared/database"
)

type ctxKey int

const subscriberKey ctxKey = 0

// SubscriberID returns the authenticated subscriber from the request
// context.
func SubscriberID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subscriberKey).(string)
	return id, ok
}

type Middleware struct {
	db *database.DB
}

func NewMiddleware(db *database.DB) *Middleware {
	return &Middleware{db: db}
}

// AuthMiddleware resolves the Bearer API key to a subscriber ID
func (m *Middleware) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		subscriberID, err := m.db.GetSubscriberByKey(r.Context(), parts[1])
		if err != nil {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subscriberKey, subscriberID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CORSMiddleware handles CORS
func (m *Middleware) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
