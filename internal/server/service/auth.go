package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/usermgmt/internal/crypto"
	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/queue"
	"github.com/iudanet/usermgmt/internal/server/session"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/internal/server/token"
)

// SessionStore описывает используемое подмножество session store
type SessionStore interface {
	Register(ctx context.Context, refreshToken, userID string, ttl time.Duration) error
	Rotate(ctx context.Context, refreshToken string) (string, error)
}

// AuthService оркестрирует аутентификацию: проверку учетных данных,
// выпуск токенов, ротацию refresh токенов и запросы сброса пароля
type AuthService struct {
	logger      *slog.Logger
	users       storage.UserStorage
	sessions    SessionStore
	tokens      *token.Manager
	publisher   queue.Publisher
	refreshTTL  time.Duration
	frontendURL string
}

// NewAuthService создает auth service
func NewAuthService(
	logger *slog.Logger,
	users storage.UserStorage,
	sessions SessionStore,
	tokens *token.Manager,
	publisher queue.Publisher,
	refreshTTL time.Duration,
	frontendURL string,
) *AuthService {
	return &AuthService{
		logger:      logger,
		users:       users,
		sessions:    sessions,
		tokens:      tokens,
		publisher:   publisher,
		refreshTTL:  refreshTTL,
		frontendURL: frontendURL,
	}
}

// Authenticate проверяет учетные данные и выдает пару токенов.
// login сопоставляется с email, username и номером телефона.
// Возвращает storage.ErrUserNotFound, ErrInvalidCredentials или
// ErrUserBlocked — три различимых отказа.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (token.Pair, error) {
	user, err := s.users.GetUserByLogin(ctx, login)
	if err != nil {
		return token.Pair{}, err
	}

	if !crypto.VerifyPassword(password, user.PasswordHash) {
		return token.Pair{}, ErrInvalidCredentials
	}

	if user.IsBlocked {
		return token.Pair{}, ErrUserBlocked
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return token.Pair{}, err
	}

	s.logger.InfoContext(ctx, "user authenticated",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	return pair, nil
}

// Refresh ротирует refresh токен и выдает новую пару.
// Новый access токен несет актуальные роль и группу пользователя,
// а не claims из прежнего токена. Отозванный и неизвестный токены
// снаружи не различаются: оба дают ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	userID, err := s.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrTokenRevoked) || errors.Is(err, session.ErrTokenUnknown) {
			return token.Pair{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
		}
		// Ошибка Redis: отказываем, токен не считается действительным
		return token.Pair{}, err
	}

	// Пользователь мог быть удален после выдачи токена
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return token.Pair{}, err
	}

	if user.IsBlocked {
		return token.Pair{}, ErrUserBlocked
	}

	return s.issueSession(ctx, user)
}

// ResetPasswordRequest обрабатывает запрос на сброс пароля.
// Для существующего и несуществующего email результат снаружи
// одинаков. Ошибка публикации в очередь возвращается вызывающему:
// молчаливой потери запроса нет.
func (s *AuthService) ResetPasswordRequest(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}
		return err
	}

	msg := s.buildResetMessage(user)

	if err := s.publisher.PublishPasswordReset(ctx, msg); err != nil {
		return fmt.Errorf("failed to dispatch reset notification: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset dispatched", slog.String("user_id", user.ID))

	return nil
}

// issueSession выпускает пару токенов и регистрирует refresh токен.
// Пара считается выданной только после успешной записи в session
// store.
func (s *AuthService) issueSession(ctx context.Context, user *models.User) (token.Pair, error) {
	pair, err := s.tokens.Issue(user)
	if err != nil {
		return token.Pair{}, err
	}

	if err := s.sessions.Register(ctx, pair.RefreshToken, user.ID, s.refreshTTL); err != nil {
		return token.Pair{}, err
	}

	return pair, nil
}

func (s *AuthService) buildResetMessage(user *models.User) queue.ResetPasswordMessage {
	resetToken := uuid.New().String()
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, resetToken)

	return queue.ResetPasswordMessage{
		Email:      user.Email,
		Subject:    "Password Reset Request",
		Body:       fmt.Sprintf("Click the following link to reset your password: %s", resetLink),
		Datetime:   time.Now().UTC().Format(time.RFC3339),
		UserID:     user.ID,
		ResetToken: resetToken,
	}
}
