package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"

	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/storage"
)

const userColumns = `id, name, surname, username, email, phone_number, password_hash,
		role, group_id, is_blocked, image_path, created_at, modified_at`

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	if user.GroupID != nil {
		if err := s.checkGroupExists(ctx, *user.GroupID); err != nil {
			return err
		}
	}

	query := s.rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Surname,
		user.Username,
		user.Email,
		nullString(user.PhoneNumber),
		user.PasswordHash,
		string(user.Role),
		nullInt64(user.GroupID),
		user.IsBlocked,
		user.ImagePath,
		user.CreatedAt,
		user.ModifiedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getUser(ctx, query, userID)
}

// GetUserByLogin retrieves user whose email, username or phone number
// equals login
func (s *Storage) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := s.rebind(`
		SELECT ` + userColumns + ` FROM users
		WHERE email = ? OR username = ? OR phone_number = ?
	`)
	return s.getUser(ctx, query, login, login, login)
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.getUser(ctx, query, email)
}

// UpdateUser updates user information
func (s *Storage) UpdateUser(ctx context.Context, user *models.User) error {
	if user.GroupID != nil {
		if err := s.checkGroupExists(ctx, *user.GroupID); err != nil {
			return err
		}
	}

	query := s.rebind(`
		UPDATE users
		SET name = ?, surname = ?, username = ?, email = ?, phone_number = ?,
			password_hash = ?, role = ?, group_id = ?, is_blocked = ?,
			image_path = ?, modified_at = ?
		WHERE id = ?
	`)

	res, err := s.db.ExecContext(ctx, query,
		user.Name,
		user.Surname,
		user.Username,
		user.Email,
		nullString(user.PhoneNumber),
		user.PasswordHash,
		string(user.Role),
		nullInt64(user.GroupID),
		user.IsBlocked,
		user.ImagePath,
		user.ModifiedAt,
		user.ID,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// DeleteUser deletes user by ID
func (s *Storage) DeleteUser(ctx context.Context, userID string) error {
	query := s.rebind(`DELETE FROM users WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// ListUsers returns users according to opts
func (s *Storage) ListUsers(ctx context.Context, opts storage.ListOptions) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`

	var conds []string
	var args []any

	if opts.NameFilter != "" {
		conds = append(conds, "(LOWER(name) LIKE ? OR LOWER(surname) LIKE ?)")
		pattern := "%" + strings.ToLower(opts.NameFilter) + "%"
		args = append(args, pattern, pattern)
	}
	if opts.GroupID != nil {
		conds = append(conds, "group_id = ?")
		args = append(args, *opts.GroupID)
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	// Колонка сортировки берется только из закрытого набора SortKey,
	// произвольные имена полей сюда попасть не могут
	direction := "ASC"
	if opts.Order == storage.OrderDesc {
		direction = "DESC"
	}
	query += " ORDER BY " + opts.SortBy.Column() + " " + direction

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []*models.User{}

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return users, nil
}

func (s *Storage) getUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Storage) checkGroupExists(ctx context.Context, groupID int64) error {
	query := s.rebind(`SELECT 1 FROM groups WHERE id = ?`)

	var one int
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrGroupNotFound
		}
		return fmt.Errorf("failed to check group: %w", err)
	}
	return nil
}

// scanner покрывает и *sql.Row, и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var phone sql.NullString
	var groupID sql.NullInt64
	var role string

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Surname,
		&user.Username,
		&user.Email,
		&phone,
		&user.PasswordHash,
		&role,
		&groupID,
		&user.IsBlocked,
		&user.ImagePath,
		&user.CreatedAt,
		&user.ModifiedAt,
	); err != nil {
		return nil, err
	}

	user.Role = models.Role(role)
	if phone.Valid {
		user.PhoneNumber = phone.String
	}
	if groupID.Valid {
		user.GroupID = &groupID.Int64
	}

	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// isUniqueViolation распознает нарушение unique constraint
// для обоих поддерживаемых драйверов
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		// SQLITE_CONSTRAINT_UNIQUE / SQLITE_CONSTRAINT_PRIMARYKEY
		return sqErr.Code() == 2067 || sqErr.Code() == 1555
	}

	return false
}
