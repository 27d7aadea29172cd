package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/usermgmt/internal/crypto"
	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/storage"
	"github.com/iudanet/usermgmt/internal/validation"
)

// UserService реализует операции над записями пользователей
type UserService struct {
	logger *slog.Logger
	users  storage.UserStorage
}

// NewUserService создает user service
func NewUserService(logger *slog.Logger, users storage.UserStorage) *UserService {
	return &UserService{logger: logger, users: users}
}

// CreateUserInput — данные регистрации нового пользователя
type CreateUserInput struct {
	Name        string
	Surname     string
	Username    string
	Email       string
	PhoneNumber string
	Password    string
	GroupID     *int64
}

// UpdateSelfInput — поля, которые пользователь может менять у себя.
// Роль и флаг блокировки сюда намеренно не входят: самостоятельная
// операция не дает эскалации привилегий.
type UpdateSelfInput struct {
	Name        *string
	Surname     *string
	Username    *string
	Email       *string
	PhoneNumber *string
}

// AdminUpdateInput — поля административного редактирования
type AdminUpdateInput struct {
	Name        *string
	Surname     *string
	Username    *string
	Email       *string
	PhoneNumber *string
	Role        *models.Role
	GroupID     *int64
	IsBlocked   *bool
}

// ListInput — параметры листинга пользователей
type ListInput struct {
	Page       int
	Limit      int
	NameFilter string
	SortBy     string
	Order      string
}

// Signup регистрирует нового пользователя с ролью USER
func (s *UserService) Signup(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Surname:      in.Surname,
		Username:     in.Username,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		Role:         models.RoleUser,
		GroupID:      in.GroupID,
		CreatedAt:    now,
		ModifiedAt:   now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username))

	return user, nil
}

// Get возвращает пользователя по ID
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// UpdateSelf применяет самостоятельное редактирование профиля.
// Изменяются только присланные поля.
func (s *UserService) UpdateSelf(ctx context.Context, user *models.User, in UpdateSelfInput) (*models.User, error) {
	updated := *user

	if err := applyProfileFields(&updated, in.Name, in.Surname, in.Username, in.Email, in.PhoneNumber); err != nil {
		return nil, err
	}

	updated.ModifiedAt = time.Now().UTC()

	if err := s.users.UpdateUser(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// AdminUpdate применяет административное редактирование: помимо
// полей профиля доступны роль, группа и флаг блокировки
func (s *UserService) AdminUpdate(ctx context.Context, targetID string, in AdminUpdateInput) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if err := applyProfileFields(user, in.Name, in.Surname, in.Username, in.Email, in.PhoneNumber); err != nil {
		return nil, err
	}

	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		user.Role = *in.Role
	}
	if in.GroupID != nil {
		user.GroupID = in.GroupID
	}
	if in.IsBlocked != nil {
		user.IsBlocked = *in.IsBlocked
	}

	user.ModifiedAt = time.Now().UTC()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated by admin", slog.String("user_id", user.ID))

	return user, nil
}

// SetImage сохраняет ключ изображения профиля.
// Пустой ключ означает удаление изображения.
func (s *UserService) SetImage(ctx context.Context, user *models.User, key string) error {
	updated := *user
	updated.ImagePath = key
	updated.ModifiedAt = time.Now().UTC()

	if err := s.users.UpdateUser(ctx, &updated); err != nil {
		return err
	}

	user.ImagePath = key
	return nil
}

// Delete удаляет пользователя по ID
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted", slog.String("user_id", userID))

	return nil
}

// List возвращает страницу пользователей для actor-а.
// MODERATOR видит только свою группу; модератор без группы
// не видит никого.
func (s *UserService) List(ctx context.Context, actor *models.User, in ListInput) ([]*models.User, error) {
	opts := storage.ListOptions{
		Page:       in.Page,
		Limit:      in.Limit,
		NameFilter: in.NameFilter,
		// Неизвестное поле сортировки не ошибка:
		// SortKey.Column даст created_at
		SortBy: storage.SortKey(in.SortBy),
		Order:  storage.Order(in.Order),
	}

	if actor.Role == models.RoleModerator {
		if actor.GroupID == nil {
			return []*models.User{}, nil
		}
		opts.GroupID = actor.GroupID
	}

	return s.users.ListUsers(ctx, opts)
}

func validateCreate(in CreateUserInput) error {
	if err := validation.ValidateName("name", in.Name); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := validation.ValidateName("surname", in.Surname); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := validation.ValidatePhoneNumber(in.PhoneNumber); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return nil
}

// applyProfileFields применяет общие для обеих операций
// редактирования поля с валидацией
func applyProfileFields(user *models.User, name, surname, username, email, phone *string) error {
	if name != nil {
		if err := validation.ValidateName("name", *name); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		user.Name = *name
	}
	if surname != nil {
		if err := validation.ValidateName("surname", *surname); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		user.Surname = *surname
	}
	if username != nil {
		if err := validation.ValidateUsername(*username); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		user.Username = *username
	}
	if email != nil {
		if err := validation.ValidateEmail(*email); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		user.Email = *email
	}
	if phone != nil {
		if err := validation.ValidatePhoneNumber(*phone); err != nil {
			return fmt.Errorf("%w: %s", ErrValidation, err)
		}
		user.PhoneNumber = *phone
	}
	return nil
}
