package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/pkg/api"
)

type contextKey string

// principalContextKey — ключ контекста с аутентифицированным
// пользователем, заполняется auth middleware
const principalContextKey contextKey = "principal"

// ContextWithPrincipal сохраняет аутентифицированного пользователя
// в контексте запроса
func ContextWithPrincipal(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, principalContextKey, user)
}

// PrincipalFromContext извлекает аутентифицированного пользователя
// из контекста запроса
func PrincipalFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(principalContextKey).(*models.User)
	return user, ok
}

// sendJSON сериализует v в тело ответа
func sendJSON(logger *slog.Logger, w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError отправляет ответ с ошибкой фиксированной формы
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, status int) {
	sendJSON(logger, w, api.ErrorResponse{Error: message}, status)
}

// sendAuthError отправляет ошибку аутентификации с заголовком,
// подсказывающим повторную bearer-аутентификацию
func sendAuthError(logger *slog.Logger, w http.ResponseWriter, message string, status int) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	sendError(logger, w, message, status)
}
