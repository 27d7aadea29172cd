package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/usermgmt/internal/server/handlers"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/internal/server/token"
)

// AuthMiddleware создает middleware для проверки bearer токена.
// После проверки подписи principal загружается из хранилища заново:
// handlers работают с актуальной записью, а не со снимком в claims.
// Заблокированный пользователь отклоняется даже с валидным токеном.
func AuthMiddleware(logger *slog.Logger, tokens *token.Manager, users storage.UserStorage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("missing Authorization header")
				unauthorized(w, "missing token")
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("invalid Authorization header format")
				unauthorized(w, "invalid token format")
				return
			}

			claims, err := tokens.Decode(parts[1])
			if err != nil {
				switch {
				case errors.Is(err, token.ErrTokenExpired):
					logger.Warn("access token expired")
					unauthorized(w, "token expired")
				default:
					logger.Warn("invalid access token", "error", err)
					unauthorized(w, "invalid token")
				}
				return
			}

			user, err := users.GetUserByLogin(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, storage.ErrUserNotFound) {
					logger.Warn("token subject no longer exists", "subject", claims.Subject)
					unauthorized(w, "invalid token")
					return
				}
				logger.Error("failed to load principal", "error", err)
				http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
				return
			}

			if user.IsBlocked {
				logger.Warn("blocked user rejected", "user_id", user.ID)
				w.Header().Set("WWW-Authenticate", "Bearer")
				http.Error(w, "Forbidden: user is blocked", http.StatusForbidden)
				return
			}

			ctx := handlers.ContextWithPrincipal(r.Context(), user)

			logger.Debug("user authenticated", "user_id", user.ID, "username", user.Username)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles создает middleware, пропускающий только principals
// с одной из перечисленных ролей. Должен стоять после AuthMiddleware.
func RequireRoles(logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := handlers.PrincipalFromContext(r.Context())
			if !ok {
				unauthorized(w, "missing token")
				return
			}

			if !allowed[string(principal.Role)] {
				logger.Warn("role check failed",
					"user_id", principal.ID,
					"role", string(principal.Role))
				http.Error(w, "Forbidden: not enough permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, reason string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "Unauthorized: "+reason, http.StatusUnauthorized)
}
