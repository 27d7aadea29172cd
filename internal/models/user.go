package models

import "time"

// Role определяет уровень доступа пользователя
type Role string

const (
	RoleUser      Role = "USER"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Valid проверяет, что роль входит в закрытый набор значений
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User представляет пользователя в системе
type User struct {
	ID           string    `json:"id"`                     // UUID пользователя
	Name         string    `json:"name"`                   // имя
	Surname      string    `json:"surname"`                // фамилия
	Username     string    `json:"username"`               // уникальный username
	Email        string    `json:"email"`                  // уникальный email
	PhoneNumber  string    `json:"phone_number,omitempty"` // уникальный номер телефона
	PasswordHash string    `json:"-"`                      // bcrypt хеш пароля, никогда не сериализуется
	Role         Role      `json:"role"`                   // роль (USER по умолчанию)
	GroupID      *int64    `json:"group_id,omitempty"`     // ссылка на группу (опционально)
	IsBlocked    bool      `json:"is_blocked"`             // флаг блокировки
	ImagePath    string    `json:"-"`                      // ключ изображения в object storage
	CreatedAt    time.Time `json:"created_at"`             // время создания
	ModifiedAt   time.Time `json:"modified_at"`            // время последнего обновления
}

// SameGroup сообщает, находятся ли два пользователя в одной группе.
// Два пользователя без группы считаются одногруппниками.
func (u *User) SameGroup(other *User) bool {
	if u.GroupID == nil || other.GroupID == nil {
		return u.GroupID == nil && other.GroupID == nil
	}
	return *u.GroupID == *other.GroupID
}

// Group представляет группу пользователей.
// Группа не хранит ссылок на участников: членство определяется
// по внешнему ключу group_id на стороне пользователя.
type Group struct {
	ID        int64     `json:"id"`         // автоинкрементный идентификатор
	Name      string    `json:"name"`       // название группы
	CreatedAt time.Time `json:"created_at"` // время создания
}
