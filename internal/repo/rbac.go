package repo

import (
	"context"
	"database/sql"
)

// Seed helpers for reference data (organizations, roles, permissions, users).
// All are idempotent so bootstrap can run on every start.

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, name string, parentID *int64) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO organizations(name, parent_id) VALUES (?,?)`,
		name, nullableInt64Ptr(parentID)); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM organizations WHERE name=?`, name).Scan(&id)
	return id, err
}

func (r Repo) EnsureRole(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO roles(name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name=?`, name).Scan(&id)
	return id, err
}

func (r Repo) EnsurePermission(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO permissions(name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM permissions WHERE name=?`, name).Scan(&id)
	return id, err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, roleID, permID int64) error {
	_, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO role_permissions(role_id, permission_id) VALUES (?,?)`, roleID, permID)
	return err
}

func (r Repo) RemoveRolePermission(ctx context.Context, tx *sql.Tx, roleID, permID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id=? AND permission_id=?`, roleID, permID)
	return err
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, email, password string, roleID, orgID int64) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(email, password, role_id, organization_id) VALUES (?,?,?,?)`,
		email, password, roleID, orgID); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email=?`, email).Scan(&id)
	return id, err
}

// RolePermissions lists permission names held by a role.
func (r Repo) RolePermissions(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT p.name FROM role_permissions rp
JOIN permissions p ON p.id=rp.permission_id
WHERE rp.role_id=?`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
