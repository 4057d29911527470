package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/carconfig/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey int

const (
	principalKey ctxKey = iota
	requestIDKey
)

// Users is the credential lookup of the authentication collaborator.
type Users interface {
	UserByUsername(ctx context.Context, username string) (domain.User, error)
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}

// WithPrincipal attaches an authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// BasicAuth resolves HTTP Basic credentials against bcrypt hashes. Requests
// without credentials pass through anonymously; wrong credentials get 401.
func BasicAuth(users Users, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			u, err := users.UserByUsername(r.Context(), username)
			if err == nil {
				err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
			}
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthenticated) && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
					logger.Error("credential lookup failed", zap.String("username", username), zap.Error(err))
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="carconfig"`)
				respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not authenticated"})
				return
			}
			p := &domain.Principal{ID: u.ID, Username: u.Username, GoodClient: u.GoodClient}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequestLogger tags every request with an id and logs its completion.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(sw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

			logger.Info("request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
