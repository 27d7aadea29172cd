package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/iudanet/usermgmt/internal/metrics"
	"github.com/iudanet/usermgmt/internal/server/service"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/pkg/api"
)

// resetPasswordReply — фиксированный ответ endpoint-а сброса пароля.
// Одинаков для существующего и несуществующего email:
// endpoint не раскрывает, зарегистрирован ли адрес.
const resetPasswordReply = "If your email is registered, you will receive a password reset link"

// AuthHandler обрабатывает запросы аутентификации
type AuthHandler struct {
	logger *slog.Logger
	users  *service.UserService
	auth   *service.AuthService
}

// NewAuthHandler создает новый handler для аутентификации
func NewAuthHandler(logger *slog.Logger, users *service.UserService, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		users:  users,
		auth:   auth,
	}
}

// Signup обрабатывает POST /auth/signup
// Регистрация нового пользователя
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode signup request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.Signup(ctx, service.CreateUserInput{
		Name:        req.Name,
		Surname:     req.Surname,
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
		GroupID:     req.GroupID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, storage.ErrUserAlreadyExists):
			h.logger.WarnContext(ctx, "signup collision", slog.String("username", req.Username))
			sendError(h.logger, w, "user with this email, username or phone number already exists", http.StatusConflict)
		case errors.Is(err, storage.ErrGroupNotFound):
			sendError(h.logger, w, "referenced group does not exist", http.StatusBadRequest)
		default:
			h.logger.ErrorContext(ctx, "failed to create user", slog.Any("error", err))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	sendJSON(h.logger, w, user, http.StatusCreated)
}

// Login обрабатывает POST /auth/login
// Аутентификация по email, username или номеру телефона
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		sendError(h.logger, w, "login and password are required", http.StatusBadRequest)
		return
	}

	pair, err := h.auth.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			// Осознанный выбор: endpoint различает неизвестный логин
			// и неверный пароль
			sendError(h.logger, w, "user not found", http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidCredentials):
			h.logger.WarnContext(ctx, "login failed: bad credentials")
			sendAuthError(h.logger, w, "incorrect login or password", http.StatusUnauthorized)
		case errors.Is(err, service.ErrUserBlocked):
			sendAuthError(h.logger, w, "user is blocked", http.StatusForbidden)
		default:
			h.logger.ErrorContext(ctx, "login failed", slog.Any("error", err))
			sendError(h.logger, w, "authentication service unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	sendJSON(h.logger, w, api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}, http.StatusOK)
}

// Refresh обрабатывает POST /auth/refresh-token
// Одноразовая ротация refresh токена
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.RefreshToken == "" {
		sendError(h.logger, w, "refresh_token is required", http.StatusBadRequest)
		return
	}

	pair, err := h.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidToken):
			sendAuthError(h.logger, w, "invalid or expired token", http.StatusUnauthorized)
		case errors.Is(err, storage.ErrUserNotFound):
			// Пользователь удален после выдачи токена
			sendAuthError(h.logger, w, "user not found", http.StatusNotFound)
		case errors.Is(err, service.ErrUserBlocked):
			sendAuthError(h.logger, w, "user is blocked", http.StatusForbidden)
		default:
			// Сюда попадают и таймауты Redis: токен при этом
			// не признается действительным
			h.logger.ErrorContext(ctx, "refresh failed", slog.Any("error", err))
			sendError(h.logger, w, "authentication service unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	sendJSON(h.logger, w, api.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	}, http.StatusOK)
}

// ResetPassword обрабатывает POST /auth/reset-password
// Ответ одинаков независимо от существования email
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" {
		sendError(h.logger, w, "email is required", http.StatusBadRequest)
		return
	}

	metrics.ResetRequestsTotal.Inc()

	if err := h.auth.ResetPasswordRequest(ctx, req.Email); err != nil {
		// Сбой диспетчеризации фатален: запрос не теряется молча
		h.logger.ErrorContext(ctx, "failed to process password reset", slog.Any("error", err))
		sendError(h.logger, w, "failed to process password reset request", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, api.MessageResponse{Message: resetPasswordReply}, http.StatusOK)
}
