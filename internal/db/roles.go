package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lectoria/internal/models"
)

type RoleRepository struct {
	db *DB
}

func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM roles WHERE name = ?`, name,
	).Scan(&role.ID, &role.Name, &role.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying role: %w", err)
	}
	return &role, nil
}

// Assign grants a role to a user. Assigning an already-held role is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, userID, roleName string) error {
	return assignRole(ctx, r.db, userID, roleName)
}

func (r *RoleRepository) AssignTx(ctx context.Context, tx *sql.Tx, userID, roleName string) error {
	return assignRole(ctx, tx, userID, roleName)
}

func assignRole(ctx context.Context, q queryer, userID, roleName string) error {
	result, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_roles (user_id, role_id)
		 SELECT ?, id FROM roles WHERE name = ?`,
		userID, roleName,
	)
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	if rows == 0 {
		// Either the role name does not exist or the user already holds it.
		var count int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles WHERE name = ?`, roleName).Scan(&count); err != nil {
			return fmt.Errorf("assigning role: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *RoleRepository) Revoke(ctx context.Context, userID, roleName string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles
		  WHERE user_id = ? AND role_id IN (SELECT id FROM roles WHERE name = ?)`,
		userID, roleName,
	)
	if err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	return nil
}

// ForUser returns the role names held by a user.
func (r *RoleRepository) ForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT roles.name FROM roles
		   JOIN user_roles ON user_roles.role_id = roles.id
		  WHERE user_roles.user_id = ?
		  ORDER BY roles.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying user roles: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning role name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
