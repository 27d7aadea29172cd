package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iudanet/usermgmt/internal/models"
	"github.com/iudanet/usermgmt/internal/server/storage"
)

// CreateGroup creates a new group and fills in its generated ID
func (s *Storage) CreateGroup(ctx context.Context, group *models.Group) error {
	query := s.rebind(`
		INSERT INTO groups (name, created_at)
		VALUES (?, ?)
		RETURNING id
	`)

	err := s.db.QueryRowContext(ctx, query, group.Name, group.CreatedAt).Scan(&group.ID)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetGroupByID retrieves group by ID
func (s *Storage) GetGroupByID(ctx context.Context, groupID int64) (*models.Group, error) {
	query := s.rebind(`SELECT id, name, created_at FROM groups WHERE id = ?`)

	group := &models.Group{}
	err := s.db.QueryRowContext(ctx, query, groupID).Scan(
		&group.ID,
		&group.Name,
		&group.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// ListGroups returns all groups
func (s *Storage) ListGroups(ctx context.Context) ([]*models.Group, error) {
	query := `SELECT id, name, created_at FROM groups ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	groups := []*models.Group{}

	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return groups, nil
}
