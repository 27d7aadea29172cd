package service

import "errors"

// Ошибки уровня сервисов. Ошибки хранилища (ErrUserNotFound,
// ErrUserAlreadyExists, ErrGroupNotFound) пробрасываются из пакета
// storage без переупаковки.
var (
	// ErrInvalidCredentials означает, что пароль не совпал с хешем.
	// Отличается от ErrUserNotFound: логин-endpoint намеренно
	// различает эти случаи.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserBlocked означает, что пользователь заблокирован
	ErrUserBlocked = errors.New("user is blocked")

	// ErrInvalidToken означает, что refresh токен отозван, неизвестен
	// или истек — снаружи эти случаи не различаются
	ErrInvalidToken = errors.New("invalid or expired token")

	// ErrValidation означает, что входные данные не прошли проверку
	ErrValidation = errors.New("validation failed")
)
