// Package authz содержит ролевую политику доступа к записям пользователей.
// Все функции чистые: никакого I/O, решение принимается только по
// полям actor и target.
package authz

import "github.com/iudanet/usermgmt/internal/models"

// CanViewUser отвечает, может ли actor читать запись target.
// ADMIN видит всех, MODERATOR — пользователей своей группы
// (отсутствие группы у обоих — тоже совпадение), USER — только себя.
func CanViewUser(actor, target *models.User) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleModerator:
		return actor.SameGroup(target)
	case models.RoleUser:
		return actor.ID == target.ID
	}
	return false
}

// CanEditUser отвечает, может ли actor изменять чужие записи
// через административную операцию. Решение не зависит от target:
// право редактирования есть только у ADMIN. Самостоятельное
// редактирование идет через отдельную, более узкую операцию
// update self и здесь не учитывается.
func CanEditUser(actor *models.User) bool {
	return actor.Role == models.RoleAdmin
}

// CanListUsers отвечает, может ли actor получать список пользователей.
// Для MODERATOR результат дополнительно ограничивается его группой
// на уровне запроса к хранилищу.
func CanListUsers(actor *models.User) bool {
	return actor.Role == models.RoleAdmin || actor.Role == models.RoleModerator
}
