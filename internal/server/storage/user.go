package storage

import (
	"context"

	"github.com/iudanet/usermgmt/internal/models"
)

// SortKey is a closed enumeration of user list sort fields.
// Unknown keys are not an error: callers fall back to SortByCreatedAt.
type SortKey string

const (
	SortByID        SortKey = "id"
	SortByName      SortKey = "name"
	SortBySurname   SortKey = "surname"
	SortByEmail     SortKey = "email"
	SortByCreatedAt SortKey = "created_at"
)

// Column returns the database column for the sort key.
// Any key outside the enumeration maps to created_at.
func (k SortKey) Column() string {
	switch k {
	case SortByID:
		return "id"
	case SortByName:
		return "name"
	case SortBySurname:
		return "surname"
	case SortByEmail:
		return "email"
	default:
		return "created_at"
	}
}

// Order is the sort direction for user listing
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ListOptions controls filtering, sorting and pagination of user listing
type ListOptions struct {
	// Page is 1-based page number
	Page int
	// Limit is the page size
	Limit int
	// NameFilter, when non-empty, keeps only users whose name or surname
	// contains the substring (case-insensitive)
	NameFilter string
	// SortBy selects the sort column; unknown values fall back to created_at
	SortBy SortKey
	// Order selects the direction; anything but "desc" means ascending
	Order Order
	// GroupID, when non-nil, keeps only users of that group
	// (moderator scoping)
	GroupID *int64
}

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage
	// Returns ErrUserAlreadyExists if email, username or phone number
	// is already taken, ErrGroupNotFound if user.GroupID references
	// a missing group
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	// GetUserByLogin retrieves user whose email, username or phone
	// number equals login
	// Returns ErrUserNotFound if no user matches
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateUser updates user information
	// Returns ErrUserNotFound if user doesn't exist,
	// ErrUserAlreadyExists on a unique constraint collision,
	// ErrGroupNotFound if user.GroupID references a missing group
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes user by ID
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID string) error

	// ListUsers returns users according to opts
	// Returns empty slice if no users match
	ListUsers(ctx context.Context, opts ListOptions) ([]*models.User, error)
}

// GroupStorage defines interface for group persistence
type GroupStorage interface {
	// CreateGroup creates a new group and fills in its generated ID
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroupByID retrieves group by ID
	// Returns ErrGroupNotFound if group doesn't exist
	GetGroupByID(ctx context.Context, groupID int64) (*models.Group, error)

	// ListGroups returns all groups
	ListGroups(ctx context.Context) ([]*models.Group, error)
}
