package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kalyangoud145/secure-task-management/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// sortColumns enumerates the task fields a caller may sort by. The incoming
// field name is matched here instead of being spliced into SQL verbatim.
var sortColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"category":    "category",
	"status":      "status",
	"order":       "task_order",
	"task_order":  "task_order",
}

// SortColumn maps a caller-supplied sort field to its column name.
func SortColumn(field string) (string, bool) {
	col, ok := sortColumns[field]
	return col, ok
}

const userColumns = `u.id, u.email, u.role_id, r.name, u.organization_id`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.RoleID, &u.RoleName, &u.OrganizationID)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// GetUser loads a user with its role eagerly joined.
func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u JOIN roles r ON r.id=u.role_id WHERE u.id=?`, id))
}

// GetUserByCredentials resolves a user by email and password for login.
func (r Repo) GetUserByCredentials(ctx context.Context, email, password string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u JOIN roles r ON r.id=u.role_id WHERE u.email=? AND u.password=?`, email, password))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users u JOIN roles r ON r.id=u.role_id WHERE u.email=?`, email))
}

const taskColumns = `id, title, COALESCE(description,''), category, status, task_order, assigned_to_id, organization_id`

func scanTaskRow(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var assignedTo sql.NullInt64
	err := scan(&t.ID, &t.Title, &t.Description, &t.Category, &t.Status, &t.Order, &assignedTo, &t.OrganizationID)
	if err != nil {
		return t, err
	}
	if assignedTo.Valid {
		t.AssignedToID = &assignedTo.Int64
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTaskRow(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// InsertTask inserts a task and returns it with the generated id.
func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (domain.Task, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks(title,description,category,status,task_order,assigned_to_id,organization_id) VALUES (?,?,?,?,?,?,?)`,
		t.Title, nullable(t.Description), t.Category, t.Status, t.Order, nullableInt64Ptr(t.AssignedToID), t.OrganizationID)
	if err != nil {
		return t, err
	}
	t.ID, err = res.LastInsertId()
	return t, err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, category=?, status=?, task_order=?, assigned_to_id=?, organization_id=? WHERE id=?`,
		t.Title, nullable(t.Description), t.Category, t.Status, t.Order, nullableInt64Ptr(t.AssignedToID), t.OrganizationID, t.ID)
	return err
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ShiftCategoryOrders increments task_order for every task sharing the
// organization and category. Must run in the same transaction as the insert
// that follows so concurrent creates cannot both land at order 0.
func (r Repo) ShiftCategoryOrders(ctx context.Context, tx *sql.Tx, orgID int64, category string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE tasks SET task_order = task_order + 1 WHERE organization_id=? AND category=?`, orgID, category)
	return err
}

// TaskFilters narrow a task listing. Zero values mean "no filter".
type TaskFilters struct {
	OrganizationID int64
	AssignedToID   int64
	Category       string
	Status         string
	SortColumn     string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.OrganizationID != 0 {
		clauses = append(clauses, "organization_id=?")
		args = append(args, f.OrganizationID)
	}
	if f.AssignedToID != 0 {
		clauses = append(clauses, "assigned_to_id=?")
		args = append(args, f.AssignedToID)
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	order := "ORDER BY id ASC"
	if f.SortColumn != "" {
		col, ok := sortColumns[f.SortColumn]
		if !ok {
			return nil, fmt.Errorf("unknown sort field %s", f.SortColumn)
		}
		order = "ORDER BY " + col + " ASC"
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ` + order
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id, name, parent_id FROM organizations ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Organization
	for rows.Next() {
		var o domain.Organization
		var parent sql.NullInt64
		if err := rows.Scan(&o.ID, &o.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			o.ParentID = &parent.Int64
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
