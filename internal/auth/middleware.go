package auth

import (
	"context"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/tradecopier/copier/internal/model"
)

// UserStore loads the authenticated user named by a verified token's
// subject. Satisfied by *repository.UserRepository.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Middleware verifies the bearer token on every request, loads the user it
// names, and installs it into the request context for downstream handlers
// to read via GetUserFromContext. Token parsing/verification lives here;
// routing the excluded surface onto this middleware is the web tier's job.
func Middleware(svc *Service, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := svc.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil || user == nil {
				logger.WithField("user_id", claims.UserID).Warn("valid token for unknown user")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
