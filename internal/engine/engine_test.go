package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalyangoud145/secure-task-management/internal/audit"
	"github.com/kalyangoud145/secure-task-management/internal/bootstrap"
	"github.com/kalyangoud145/secure-task-management/internal/config"
	"github.com/kalyangoud145/secure-task-management/internal/db"
	"github.com/kalyangoud145/secure-task-management/internal/domain"
	"github.com/kalyangoud145/secure-task-management/internal/engine"
	"github.com/kalyangoud145/secure-task-management/internal/engine/auth"
	"github.com/kalyangoud145/secure-task-management/internal/migrate"
	"github.com/kalyangoud145/secure-task-management/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := bootstrap.Seed(ctx, conn, config.Default()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	eng := engine.New(conn, nil)
	fixed := func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	eng.Now = fixed
	eng.Audit.Now = fixed
	return testEnv{Engine: eng, Ctx: ctx}
}

func userByEmail(t *testing.T, env testEnv, email string) domain.User {
	t.Helper()
	u, err := env.Engine.Repo.GetUserByEmail(env.Ctx, email)
	if err != nil {
		t.Fatalf("lookup user %s: %v", email, err)
	}
	return u
}

func taskByTitle(t *testing.T, env testEnv, title string) domain.Task {
	t.Helper()
	tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	for _, task := range tasks {
		if task.Title == title {
			return task
		}
	}
	t.Fatalf("task %q not found", title)
	return domain.Task{}
}

func TestCreateTaskInsertsAtZeroAndShiftsSiblings(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")

	// Seeded Work tasks in the admin's org sit at orders 1 and 3.
	created, err := env.Engine.CreateTask(env.Ctx, admin.ID, engine.TaskCreateOptions{Title: "Write tests"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Order != 0 {
		t.Fatalf("new task order = %d, want 0", created.Order)
	}
	if created.Category != "Work" || created.Status != "Todo" {
		t.Fatalf("defaults not applied: %+v", created)
	}
	if got := taskByTitle(t, env, "Sample Task").Order; got != 2 {
		t.Fatalf("Sample Task order = %d, want 2", got)
	}
	if got := taskByTitle(t, env, "Finish Report").Order; got != 4 {
		t.Fatalf("Finish Report order = %d, want 4", got)
	}
	// Another category is untouched.
	if got := taskByTitle(t, env, "Personal Errand").Order; got != 2 {
		t.Fatalf("Personal Errand order = %d, want 2", got)
	}

	// A second create bumps the first one to 1.
	second, err := env.Engine.CreateTask(env.Ctx, admin.ID, engine.TaskCreateOptions{Title: "Review tests"})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.Order != 0 {
		t.Fatalf("second task order = %d, want 0", second.Order)
	}
	if got := taskByTitle(t, env, "Write tests").Order; got != 1 {
		t.Fatalf("first task order after second create = %d, want 1", got)
	}
}

func TestConcurrentCreatesLeaveOneTaskAtZero(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.Engine.CreateTask(env.Ctx, admin.ID, engine.TaskCreateOptions{Title: fmt.Sprintf("burst %d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	// The shift and the insert share one transaction, so no two creates may
	// both land at order 0.
	tasks, err := env.Engine.Repo.ListTasks(env.Ctx, repo.TaskFilters{OrganizationID: admin.OrganizationID, Category: "Work"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != writers+2 {
		t.Fatalf("Work tasks = %d, want %d", len(tasks), writers+2)
	}
	zeros := 0
	for _, task := range tasks {
		if task.Order == 0 {
			zeros++
		}
	}
	if zeros != 1 {
		t.Fatalf("tasks at order 0 = %d, want exactly 1", zeros)
	}
}

func TestCreateTaskAssignedToCreator(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	if _, err := env.Engine.CreateTask(env.Ctx, admin.ID, engine.TaskCreateOptions{Title: "Mine"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	raw := taskByTitle(t, env, "Mine")
	if raw.AssignedToID == nil || *raw.AssignedToID != admin.ID {
		t.Fatalf("task not assigned to creator: %+v", raw)
	}
	if raw.OrganizationID != admin.OrganizationID {
		t.Fatalf("task org %d, want creator org %d", raw.OrganizationID, admin.OrganizationID)
	}
}

func TestCreateTaskRequiresPermission(t *testing.T) {
	env := newTestEnv(t)
	viewer := userByEmail(t, env, "viewer@org.com")
	_, err := env.Engine.CreateTask(env.Ctx, viewer.ID, engine.TaskCreateOptions{Title: "Nope"})
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestCreateTaskUnknownUserForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, 9999, engine.TaskCreateOptions{Title: "Ghost"})
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError for unknown user, got %v", err)
	}
}

func TestListTasksUnknownUserForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ListTasks(env.Ctx, 9999, engine.ListOptions{})
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("listing with an unknown user must be forbidden, got %v", err)
	}
}

func TestEditTaskUnknownUserNotFound(t *testing.T) {
	env := newTestEnv(t)
	task := taskByTitle(t, env, "Sample Task")
	_, err := env.Engine.EditTask(env.Ctx, 9999, task.ID, engine.TaskEditOptions{})
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("mutations surface an unknown user as not found, got %v", err)
	}
}

func TestListVisibilityFollowsPermission(t *testing.T) {
	env := newTestEnv(t)
	viewer := userByEmail(t, env, "viewer@org.com")

	tasks, err := env.Engine.ListTasks(env.Ctx, viewer.ID, engine.ListOptions{})
	if err != nil {
		t.Fatalf("list with view_task: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("viewer with view_task must see org tasks, got %d", len(tasks))
	}

	// Without view_task only assigned tasks remain, and none are assigned
	// to the viewer.
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	permID, err := env.Engine.Repo.EnsurePermission(env.Ctx, tx, "view_task")
	if err != nil {
		t.Fatalf("permission id: %v", err)
	}
	if err := env.Engine.Repo.RemoveRolePermission(env.Ctx, tx, viewer.RoleID, permID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tasks, err = env.Engine.ListTasks(env.Ctx, viewer.ID, engine.ListOptions{})
	if err != nil {
		t.Fatalf("list without view_task: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("viewer without view_task must see only assigned tasks, got %d", len(tasks))
	}
}

func TestListTasksFiltersAndSort(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")

	todo, err := env.Engine.ListTasks(env.Ctx, admin.ID, engine.ListOptions{Status: "Todo"})
	if err != nil {
		t.Fatalf("status filter: %v", err)
	}
	if len(todo) != 1 || todo[0].Title != "Sample Task" {
		t.Fatalf("unexpected Todo tasks: %+v", todo)
	}

	work, err := env.Engine.ListTasks(env.Ctx, admin.ID, engine.ListOptions{Category: "Work", Sort: "order"})
	if err != nil {
		t.Fatalf("category filter with sort: %v", err)
	}
	if len(work) != 2 || work[0].Order > work[1].Order {
		t.Fatalf("expected Work tasks ascending by order, got %+v", work)
	}

	if _, err := env.Engine.ListTasks(env.Ctx, admin.ID, engine.ListOptions{Sort: "password"}); err == nil {
		t.Fatalf("unknown sort field must be rejected")
	}
}

func TestListAllAndOrgTasks(t *testing.T) {
	env := newTestEnv(t)
	all, err := env.Engine.ListAllTasks(env.Ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 seeded tasks, got %d", len(all))
	}
	owner := userByEmail(t, env, "owner@org.com")
	parentTasks, err := env.Engine.ListOrgTasks(env.Ctx, owner.OrganizationID)
	if err != nil {
		t.Fatalf("list org: %v", err)
	}
	if len(parentTasks) != 0 {
		t.Fatalf("parent org has no seeded tasks, got %d", len(parentTasks))
	}
}

func TestListCategoriesGroupsInFirstSeenOrder(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	groups, err := env.Engine.ListCategories(env.Ctx, admin.ID)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Category != "Work" || len(groups[0].Tasks) != 2 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if groups[1].Category != "Personal" || len(groups[1].Tasks) != 1 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestUpdateTaskOrderDoesNotRebalance(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	sample := taskByTitle(t, env, "Sample Task")

	updated, err := env.Engine.UpdateTaskOrder(env.Ctx, admin.ID, sample.ID, 7)
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if updated.Order != 7 {
		t.Fatalf("order = %d, want 7", updated.Order)
	}
	if got := taskByTitle(t, env, "Finish Report").Order; got != 3 {
		t.Fatalf("sibling order changed to %d, want 3", got)
	}
}

func TestUpdateTaskOrderSkipsOwnershipGate(t *testing.T) {
	env := newTestEnv(t)
	viewer := userByEmail(t, env, "viewer@org.com")
	sample := taskByTitle(t, env, "Sample Task")

	// The viewer is neither assignee nor permission holder, yet reorder
	// goes through.
	if _, err := env.Engine.UpdateTaskOrder(env.Ctx, viewer.ID, sample.ID, 9); err != nil {
		t.Fatalf("reorder by viewer: %v", err)
	}
	if _, err := env.Engine.UpdateTaskStatus(env.Ctx, viewer.ID, sample.ID, "Done"); err == nil {
		t.Fatalf("status update by viewer must stay forbidden")
	}
}

func TestUpdateStatusOwnershipGate(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	owner := userByEmail(t, env, "owner@org.com")
	sample := taskByTitle(t, env, "Sample Task")

	updated, err := env.Engine.UpdateTaskStatus(env.Ctx, admin.ID, sample.ID, "InProgress")
	if err != nil {
		t.Fatalf("status update by admin: %v", err)
	}
	if updated.Status != "InProgress" {
		t.Fatalf("status = %s, want InProgress", updated.Status)
	}

	// Owner holds edit_task but sits in the parent org; the task belongs
	// to the child org.
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, owner.ID, sample.ID, "Done")
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("cross-org edit must be forbidden, got %v", err)
	}
}

func TestEditTaskAppliesPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	sample := taskByTitle(t, env, "Sample Task")

	title := "Renamed Task"
	updated, err := env.Engine.EditTask(env.Ctx, admin.ID, sample.ID, engine.TaskEditOptions{Title: &title})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Title != "Renamed Task" {
		t.Fatalf("title = %s", updated.Title)
	}
	if updated.Description != sample.Description || updated.Category != sample.Category {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
}

func TestDeleteTaskAuditsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	sample := taskByTitle(t, env, "Sample Task")

	res, err := env.Engine.DeleteTask(env.Ctx, admin.ID, sample.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.Deleted {
		t.Fatalf("expected deleted=true")
	}
	deletes := 0
	for _, e := range env.Engine.AuditLog() {
		if e.Action == audit.ActionDeleteTask {
			deletes++
			if e.TargetID == nil || *e.TargetID != sample.ID {
				t.Fatalf("delete entry target = %v", e.TargetID)
			}
		}
	}
	if deletes != 1 {
		t.Fatalf("expected exactly one delete entry, got %d", deletes)
	}

	// A failed delete must not append.
	if _, err := env.Engine.DeleteTask(env.Ctx, admin.ID, sample.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if got := env.Engine.Audit.Len(); got != 1 {
		t.Fatalf("audit length after failed delete = %d, want 1", got)
	}
}

func TestAuditEntriesUseEngineClock(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")
	if _, err := env.Engine.CreateTask(env.Ctx, admin.ID, engine.TaskCreateOptions{Title: "Clock"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	entries := env.Engine.AuditLog()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Timestamp != "2024-01-01T00:00:00Z" {
		t.Fatalf("timestamp = %s", entries[0].Timestamp)
	}
	if entries[0].Action != audit.ActionCreateTask || entries[0].UserID != admin.ID {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestSeededOrganizationHierarchy(t *testing.T) {
	env := newTestEnv(t)
	orgs, err := env.Engine.Repo.ListOrganizations(env.Ctx)
	if err != nil {
		t.Fatalf("list organizations: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("expected 2 organizations, got %d", len(orgs))
	}
	if orgs[0].Name != "ParentOrg" || orgs[0].ParentID != nil {
		t.Fatalf("unexpected root org: %+v", orgs[0])
	}
	if orgs[1].Name != "ChildOrg" || orgs[1].ParentID == nil || *orgs[1].ParentID != orgs[0].ID {
		t.Fatalf("child org not parented to root: %+v", orgs[1])
	}
}

func TestSeededRolePermissions(t *testing.T) {
	env := newTestEnv(t)
	viewer := userByEmail(t, env, "viewer@org.com")
	perms, err := env.Engine.Repo.RolePermissions(env.Ctx, viewer.RoleID)
	if err != nil {
		t.Fatalf("viewer permissions: %v", err)
	}
	if len(perms) != 1 || perms[0] != "view_task" {
		t.Fatalf("viewer permissions = %v, want [view_task]", perms)
	}

	admin := userByEmail(t, env, "admin@org.com")
	perms, err = env.Engine.Repo.RolePermissions(env.Ctx, admin.RoleID)
	if err != nil {
		t.Fatalf("admin permissions: %v", err)
	}
	if len(perms) != 3 {
		t.Fatalf("admin permissions = %v, want 3 entries", perms)
	}
	for _, p := range perms {
		if p == "delete_task" {
			t.Fatalf("admin role must not hold delete_task")
		}
	}
}

func TestListingsDoNotAuditExceptListTasks(t *testing.T) {
	env := newTestEnv(t)
	admin := userByEmail(t, env, "admin@org.com")

	if _, err := env.Engine.ListAllTasks(env.Ctx); err != nil {
		t.Fatalf("list all: %v", err)
	}
	if _, err := env.Engine.ListOrgTasks(env.Ctx, admin.OrganizationID); err != nil {
		t.Fatalf("list org: %v", err)
	}
	if _, err := env.Engine.ListCategories(env.Ctx, admin.ID); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if got := env.Engine.Audit.Len(); got != 0 {
		t.Fatalf("dispatch listings must not audit, got %d entries", got)
	}

	if _, err := env.Engine.ListTasks(env.Ctx, admin.ID, engine.ListOptions{}); err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	entries := env.Engine.AuditLog()
	if len(entries) != 1 || entries[0].Action != audit.ActionListTasks || entries[0].TargetID != nil {
		t.Fatalf("expected one LIST_TASKS entry without target, got %+v", entries)
	}
}
