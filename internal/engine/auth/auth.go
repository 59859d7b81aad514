package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kalyangoud145/secure-task-management/internal/domain"
)

// ForbiddenError indicates a failed role, permission or ownership check.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// UnauthorizedError indicates a request with no usable role attached.
type UnauthorizedError struct {
	Reason string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Reason)
}

// roleHierarchy is the total order over role names, lowest rank first.
var roleHierarchy = []string{"Viewer", "Admin", "Owner"}

// RoleRank returns the rank of a role name, or -1 for an unknown role.
func RoleRank(name string) int {
	for i, r := range roleHierarchy {
		if r == name {
			return i
		}
	}
	return -1
}

// AnyRole grants access when the principal's rank meets ANY of the acceptable
// roles. The effective threshold therefore collapses to the lowest listed
// rank: {Owner, Admin} behaves exactly like {Admin}. An empty acceptable set
// grants access. A principal without a role is rejected outright.
func AnyRole(p domain.Principal, acceptable ...string) error {
	if len(acceptable) == 0 {
		return nil
	}
	if p.RoleName == "" {
		return UnauthorizedError{Reason: "no user role"}
	}
	rank := RoleRank(p.RoleName)
	for _, role := range acceptable {
		if rank >= RoleRank(role) {
			return nil
		}
	}
	return ForbiddenError{Reason: fmt.Sprintf("role %s not acceptable", p.RoleName)}
}

// CanAccessTask is the coarse role-name gate evaluated before edit/delete.
// Admin may touch any task, Owner any task in their own organization, Viewer
// only tasks assigned to them. An absent task is never accessible.
func CanAccessTask(p domain.Principal, task *domain.Task) bool {
	if task == nil {
		return false
	}
	if p.RoleName == "Admin" {
		return true
	}
	if p.RoleName == "Owner" && p.OrganizationID == task.OrganizationID {
		return true
	}
	if p.RoleName == "Viewer" && task.AssignedToID != nil && p.ID == *task.AssignedToID {
		return true
	}
	return false
}

// CanEditOrDelete is the fine permission gate evaluated inside mutations.
// Holders of edit_task may modify any task in their organization; everyone
// else falls back to assignee-only access. The fallback intentionally lets an
// assignee modify their task without holding edit_task.
func CanEditOrDelete(user domain.User, task domain.Task, hasEditPermission bool) bool {
	if hasEditPermission {
		return task.OrganizationID == user.OrganizationID
	}
	return task.AssignedToID != nil && *task.AssignedToID == user.ID
}

// Service answers permission-catalog queries backed by SQL. Permission
// membership is per-role data, independent of the hierarchy rank.
type Service struct {
	DB *sql.DB
}

// HasPermission reports whether the user's role holds the named permission.
func (s Service) HasPermission(ctx context.Context, user domain.User, perm string) (bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT 1 FROM role_permissions rp
JOIN permissions p ON p.id=rp.permission_id
WHERE rp.role_id=? AND p.name=? LIMIT 1`,
		user.RoleID, perm)
	var n int
	err := row.Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// UserPermissions lists the permission names held by the user's role.
func (s Service) UserPermissions(ctx context.Context, user domain.User) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT p.name FROM role_permissions rp
JOIN permissions p ON p.id=rp.permission_id
WHERE rp.role_id=?`, user.RoleID)
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
