package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kalyangoud145/secure-task-management/internal/audit"
	"github.com/kalyangoud145/secure-task-management/internal/domain"
	"github.com/kalyangoud145/secure-task-management/internal/engine/auth"
	"github.com/kalyangoud145/secure-task-management/internal/repo"
)

const (
	defaultCategory = "Work"
	defaultStatus   = "Todo"
)

// Engine coordinates visibility, mutation eligibility, per-category ordering
// and the audit trail for tasks. Three independent gates are composed per
// operation: the role hierarchy (auth.AnyRole, applied by callers), the
// permission catalog (auth.Service) and ownership/assignment checks.
type Engine struct {
	DB    *sql.DB
	Repo  repo.Repo
	Auth  auth.Service
	Audit *audit.Recorder
	Now   func() time.Time
}

func New(db *sql.DB, rec *audit.Recorder) Engine {
	if rec == nil {
		rec = audit.NewRecorder()
	}
	return Engine{
		DB:    db,
		Repo:  repo.Repo{DB: db},
		Auth:  auth.Service{DB: db},
		Audit: rec,
		Now:   time.Now,
	}
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	Category    string
	Status      string
}

// CreateTask inserts a task at order 0 of its (organization, category) group,
// shifting every sibling up by one in the same transaction. The new task is
// assigned to its creator.
func (e Engine) CreateTask(ctx context.Context, userID int64, opts TaskCreateOptions) (domain.TaskView, error) {
	user, err := e.requireUserWithPermission(ctx, userID, "create_task")
	if err != nil {
		return domain.TaskView{}, err
	}
	if opts.Title == "" {
		return domain.TaskView{}, errors.New("title is required")
	}
	if opts.Category == "" {
		opts.Category = defaultCategory
	}
	if opts.Status == "" {
		opts.Status = defaultStatus
	}
	t := domain.Task{
		Title:          opts.Title,
		Description:    opts.Description,
		Category:       opts.Category,
		Status:         opts.Status,
		Order:          0,
		AssignedToID:   &user.ID,
		OrganizationID: user.OrganizationID,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.ShiftCategoryOrders(ctx, tx, user.OrganizationID, t.Category); err != nil {
		return domain.TaskView{}, err
	}
	t, err = e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	e.Audit.Append(user.ID, audit.ActionCreateTask, &t.ID)
	return t.View(), nil
}

// ListOptions narrow and order a listing. Only the fields enumerated here are
// honored: a single ascending sort column, an equality status filter and an
// equality category filter.
type ListOptions struct {
	Sort     string
	Status   string
	Category string
}

// ListTasks returns the tasks the user may see: the whole organization when
// the user's role holds view_task, otherwise only tasks assigned to them.
func (e Engine) ListTasks(ctx context.Context, userID int64, opts ListOptions) ([]domain.TaskView, error) {
	user, err := e.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filters := repo.TaskFilters{
		Category:   opts.Category,
		Status:     opts.Status,
		SortColumn: opts.Sort,
	}
	canView, err := e.Auth.HasPermission(ctx, user, "view_task")
	if err != nil {
		return nil, err
	}
	if canView {
		filters.OrganizationID = user.OrganizationID
	} else {
		filters.AssignedToID = user.ID
	}
	tasks, err := e.Repo.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	e.Audit.Append(user.ID, audit.ActionListTasks, nil)
	return views(tasks), nil
}

// ListAllTasks returns every task in the system. Callers dispatch here for
// the Admin role; no permission check happens inside.
func (e Engine) ListAllTasks(ctx context.Context) ([]domain.TaskView, error) {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{})
	if err != nil {
		return nil, err
	}
	return views(tasks), nil
}

// ListOrgTasks returns every task in one organization. Callers dispatch here
// for the Owner role; no permission check happens inside.
func (e Engine) ListOrgTasks(ctx context.Context, orgID int64) ([]domain.TaskView, error) {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return views(tasks), nil
}

// ListCategories groups the user's visible tasks by category, preserving
// first-seen category order. List options do not apply here.
func (e Engine) ListCategories(ctx context.Context, userID int64) ([]domain.CategoryGroup, error) {
	user, err := e.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	filters := repo.TaskFilters{}
	canView, err := e.Auth.HasPermission(ctx, user, "view_task")
	if err != nil {
		return nil, err
	}
	if canView {
		filters.OrganizationID = user.OrganizationID
	} else {
		filters.AssignedToID = user.ID
	}
	tasks, err := e.Repo.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	var groups []domain.CategoryGroup
	index := map[string]int{}
	for _, t := range tasks {
		i, ok := index[t.Category]
		if !ok {
			i = len(groups)
			index[t.Category] = i
			groups = append(groups, domain.CategoryGroup{Category: t.Category})
		}
		groups[i].Tasks = append(groups[i].Tasks, t.View())
	}
	return groups, nil
}

// TaskEditOptions carries the editable task fields; nil means unchanged.
type TaskEditOptions struct {
	Title       *string
	Description *string
	Category    *string
	Status      *string
}

// EditTask applies field updates after the permission/ownership gate.
func (e Engine) EditTask(ctx context.Context, userID, taskID int64, opts TaskEditOptions) (domain.TaskView, error) {
	user, task, err := e.resolveUserAndTask(ctx, userID, taskID)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := e.requireEditOrDelete(ctx, user, task); err != nil {
		return domain.TaskView{}, err
	}
	if opts.Title != nil {
		task.Title = *opts.Title
	}
	if opts.Description != nil {
		task.Description = *opts.Description
	}
	if opts.Category != nil {
		task.Category = *opts.Category
	}
	if opts.Status != nil {
		task.Status = *opts.Status
	}
	if err := e.saveTask(ctx, task); err != nil {
		return domain.TaskView{}, err
	}
	e.Audit.Append(user.ID, audit.ActionEditTask, &task.ID)
	return task.View(), nil
}

// DeleteResult is the response shape for a successful delete.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
}

// DeleteTask removes one task after the permission/ownership gate. The task
// is read inside the delete transaction so the gate and the delete decide on
// the same row.
func (e Engine) DeleteTask(ctx context.Context, userID, taskID int64) (DeleteResult, error) {
	user, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return DeleteResult{}, err
	}
	defer tx.Rollback()
	task, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := e.requireEditOrDelete(ctx, user, task); err != nil {
		return DeleteResult{}, err
	}
	if err := e.Repo.DeleteTask(ctx, tx, task.ID); err != nil {
		return DeleteResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return DeleteResult{}, err
	}
	e.Audit.Append(user.ID, audit.ActionDeleteTask, &task.ID)
	return DeleteResult{Deleted: true}, nil
}

// UpdateTaskOrder overwrites the task's order with newOrder. Sibling orders
// are not shifted or rebalanced, so repeated manual reorders may leave
// duplicates or gaps within a category. Beyond resolving the user and task,
// no ownership check applies here.
func (e Engine) UpdateTaskOrder(ctx context.Context, userID, taskID int64, newOrder int) (domain.TaskView, error) {
	user, task, err := e.resolveUserAndTask(ctx, userID, taskID)
	if err != nil {
		return domain.TaskView{}, err
	}
	task.Order = newOrder
	if err := e.saveTask(ctx, task); err != nil {
		return domain.TaskView{}, err
	}
	e.Audit.Append(user.ID, audit.ActionUpdateOrder, &task.ID)
	return task.View(), nil
}

// UpdateTaskStatus sets the task's status after the permission/ownership gate.
func (e Engine) UpdateTaskStatus(ctx context.Context, userID, taskID int64, status string) (domain.TaskView, error) {
	user, task, err := e.resolveUserAndTask(ctx, userID, taskID)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := e.requireEditOrDelete(ctx, user, task); err != nil {
		return domain.TaskView{}, err
	}
	task.Status = status
	if err := e.saveTask(ctx, task); err != nil {
		return domain.TaskView{}, err
	}
	e.Audit.Append(user.ID, audit.ActionUpdateStatus, &task.ID)
	return task.View(), nil
}

// GetTask loads a raw task for access-control decisions in the caller.
func (e Engine) GetTask(ctx context.Context, taskID int64) (domain.Task, error) {
	return e.Repo.GetTask(ctx, taskID)
}

// CanAccessTask is the coarse role-name gate; see auth.CanAccessTask.
func (e Engine) CanAccessTask(p domain.Principal, task *domain.Task) bool {
	return auth.CanAccessTask(p, task)
}

// AuditLog returns all recorded audit entries in append order.
func (e Engine) AuditLog() []domain.AuditEntry {
	return e.Audit.Entries()
}

// --- helpers ---

// requireUser resolves a user for the listing paths, which surface an absent
// user as Forbidden rather than NotFound. The mutation paths keep NotFound;
// the conflation differs per operation on purpose.
func (e Engine) requireUser(ctx context.Context, userID int64) (domain.User, error) {
	user, err := e.Repo.GetUser(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return user, auth.ForbiddenError{Reason: "unknown user"}
	}
	return user, err
}

// requireUserWithPermission resolves the user and checks one catalog
// permission, collapsing "user absent" and "permission missing" into a single
// Forbidden as the create path requires.
func (e Engine) requireUserWithPermission(ctx context.Context, userID int64, perm string) (domain.User, error) {
	user, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return user, auth.ForbiddenError{Reason: perm + " required"}
		}
		return user, err
	}
	ok, err := e.Auth.HasPermission(ctx, user, perm)
	if err != nil {
		return user, err
	}
	if !ok {
		return user, auth.ForbiddenError{Reason: perm + " required"}
	}
	return user, nil
}

// resolveUserAndTask loads both or fails with ErrNotFound.
func (e Engine) resolveUserAndTask(ctx context.Context, userID, taskID int64) (domain.User, domain.Task, error) {
	user, err := e.Repo.GetUser(ctx, userID)
	if err != nil {
		return user, domain.Task{}, err
	}
	task, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return user, task, err
	}
	return user, task, nil
}

func (e Engine) requireEditOrDelete(ctx context.Context, user domain.User, task domain.Task) error {
	hasEdit, err := e.Auth.HasPermission(ctx, user, "edit_task")
	if err != nil {
		return err
	}
	if !auth.CanEditOrDelete(user, task, hasEdit) {
		return auth.ForbiddenError{Reason: "cannot modify task"}
	}
	return nil
}

func (e Engine) saveTask(ctx context.Context, task domain.Task) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTask(ctx, tx, task); err != nil {
		return err
	}
	return tx.Commit()
}

func views(tasks []domain.Task) []domain.TaskView {
	out := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.View())
	}
	return out
}
