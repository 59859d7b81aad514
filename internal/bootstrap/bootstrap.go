package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kalyangoud145/secure-task-management/internal/config"
	"github.com/kalyangoud145/secure-task-management/internal/repo"
)

// Seed loads the reference data (organizations, roles, permissions, users and
// sample tasks) from config into the store. Every step is idempotent, so Seed
// can run on each start.
func Seed(ctx context.Context, db *sql.DB, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	r := repo.Repo{DB: db}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	orgIDs := map[string]int64{}
	for _, o := range cfg.Seed.Organizations {
		var parentID *int64
		if o.Parent != "" {
			id, ok := orgIDs[o.Parent]
			if !ok {
				return fmt.Errorf("organization %s seeded before its parent %s", o.Name, o.Parent)
			}
			parentID = &id
		}
		id, err := r.EnsureOrg(ctx, tx, o.Name, parentID)
		if err != nil {
			return fmt.Errorf("ensure org %s: %w", o.Name, err)
		}
		orgIDs[o.Name] = id
	}

	permIDs := map[string]int64{}
	for _, p := range cfg.Seed.Permissions {
		id, err := r.EnsurePermission(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("ensure permission %s: %w", p, err)
		}
		permIDs[p] = id
	}

	roleIDs := map[string]int64{}
	for name, role := range cfg.Seed.Roles {
		id, err := r.EnsureRole(ctx, tx, name)
		if err != nil {
			return fmt.Errorf("ensure role %s: %w", name, err)
		}
		roleIDs[name] = id
		for _, p := range role.Permissions {
			if err := r.AddRolePermission(ctx, tx, id, permIDs[p]); err != nil {
				return fmt.Errorf("grant %s to %s: %w", p, name, err)
			}
		}
	}

	userIDs := map[string]int64{}
	for _, u := range cfg.Seed.Users {
		id, err := r.EnsureUser(ctx, tx, u.Email, u.Password, roleIDs[u.Role], orgIDs[u.Organization])
		if err != nil {
			return fmt.Errorf("ensure user %s: %w", u.Email, err)
		}
		userIDs[u.Email] = id
	}

	for i, t := range cfg.Seed.Tasks {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE title=? LIMIT 1`, t.Title).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check task %s: %w", t.Title, err)
		}
		var assignedTo any
		if t.AssignedTo != "" {
			assignedTo = userIDs[t.AssignedTo]
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks(title,description,category,status,task_order,assigned_to_id,organization_id) VALUES (?,?,?,?,?,?,?)`,
			t.Title, t.Description, t.Category, t.Status, i+1, assignedTo, orgIDs[t.Organization]); err != nil {
			return fmt.Errorf("seed task %s: %w", t.Title, err)
		}
	}

	return tx.Commit()
}
