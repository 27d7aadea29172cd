package validation

import (
	"fmt"
	"regexp"
)

// UsernamePattern определяет допустимый формат username
// Только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 3-32 символа
var UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// EmailPattern — минимальная проверка структуры email (local@domain.tld)
var EmailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// PhonePattern — номер телефона в польском формате: +48 и девять цифр
var PhonePattern = regexp.MustCompile(`^\+48\d{9}$`)

const (
	// MinUsernameLen минимальная длина username
	MinUsernameLen = 3
	// MaxUsernameLen максимальная длина username
	MaxUsernameLen = 32

	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordLen максимальная длина пароля
	MaxPasswordLen = 128

	// MaxNameLen максимальная длина имени и фамилии
	MaxNameLen = 100
)

// ValidateUsername проверяет, что username соответствует требованиям
// Формат: только латинские буквы (a-z, A-Z), цифры (0-9), нижнее подчеркивание (_)
// Длина: 3-32 символа
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	if len(username) < MinUsernameLen {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	}

	if len(username) > MaxUsernameLen {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username can only contain letters (a-z, A-Z), numbers (0-9), and underscores (_)")
	}

	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
// Длина: 8-128 символов
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if len(password) < MinPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	}

	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLen)
	}

	return nil
}

// ValidateEmail проверяет структуру email адреса
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	if !EmailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}

	return nil
}

// ValidatePhoneNumber проверяет номер телефона
// Принимается фиксированный региональный формат: +48XXXXXXXXX
// Пустой номер допустим (поле опционально)
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return nil
	}

	if !PhonePattern.MatchString(phone) {
		return fmt.Errorf("phone number must match the +48XXXXXXXXX format")
	}

	return nil
}

// ValidateName проверяет имя или фамилию пользователя
func ValidateName(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}

	if len(value) > MaxNameLen {
		return fmt.Errorf("%s must not exceed %d characters", field, MaxNameLen)
	}

	return nil
}
