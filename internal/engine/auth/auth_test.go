package auth_test

import (
	"errors"
	"testing"

	"github.com/kalyangoud145/secure-task-management/internal/domain"
	"github.com/kalyangoud145/secure-task-management/internal/engine/auth"
)

func TestRoleRank(t *testing.T) {
	cases := []struct {
		role string
		rank int
	}{
		{"Viewer", 0},
		{"Admin", 1},
		{"Owner", 2},
		{"Intern", -1},
		{"", -1},
	}
	for _, c := range cases {
		if got := auth.RoleRank(c.role); got != c.rank {
			t.Errorf("RoleRank(%q) = %d, want %d", c.role, got, c.rank)
		}
	}
}

func TestAnyRoleCollapsesToLowestRank(t *testing.T) {
	admin := domain.Principal{ID: 1, RoleName: "Admin"}
	// Listing Owner alongside Admin must not raise the bar above Admin.
	if err := auth.AnyRole(admin, "Owner", "Admin"); err != nil {
		t.Fatalf("admin against {Owner, Admin}: %v", err)
	}
	if err := auth.AnyRole(admin, "Admin"); err != nil {
		t.Fatalf("admin against {Admin}: %v", err)
	}
	if err := auth.AnyRole(admin, "Owner"); err == nil {
		t.Fatalf("admin against {Owner}: expected forbidden")
	}
	viewer := domain.Principal{ID: 2, RoleName: "Viewer"}
	if err := auth.AnyRole(viewer, "Owner", "Admin"); err == nil {
		t.Fatalf("viewer against {Owner, Admin}: expected forbidden")
	}
	if err := auth.AnyRole(viewer, "Viewer", "Owner", "Admin"); err != nil {
		t.Fatalf("viewer against {Viewer, Owner, Admin}: %v", err)
	}
}

func TestAnyRoleEmptySetGrants(t *testing.T) {
	if err := auth.AnyRole(domain.Principal{ID: 1}); err != nil {
		t.Fatalf("empty acceptable set must grant: %v", err)
	}
}

func TestAnyRoleMissingRoleUnauthorized(t *testing.T) {
	err := auth.AnyRole(domain.Principal{ID: 1}, "Viewer")
	var ue auth.UnauthorizedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
}

func TestCanAccessTask(t *testing.T) {
	assignee := int64(7)
	task := &domain.Task{ID: 1, OrganizationID: 10, AssignedToID: &assignee}
	cases := []struct {
		name string
		p    domain.Principal
		task *domain.Task
		want bool
	}{
		{"nil task", domain.Principal{ID: 1, RoleName: "Admin"}, nil, false},
		{"admin any org", domain.Principal{ID: 1, RoleName: "Admin", OrganizationID: 99}, task, true},
		{"owner same org", domain.Principal{ID: 1, RoleName: "Owner", OrganizationID: 10}, task, true},
		{"owner other org", domain.Principal{ID: 1, RoleName: "Owner", OrganizationID: 11}, task, false},
		{"viewer assignee", domain.Principal{ID: 7, RoleName: "Viewer", OrganizationID: 10}, task, true},
		{"viewer not assignee", domain.Principal{ID: 8, RoleName: "Viewer", OrganizationID: 10}, task, false},
		{"unknown role", domain.Principal{ID: 7, RoleName: "Intern", OrganizationID: 10}, task, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := auth.CanAccessTask(c.p, c.task); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestCanEditOrDelete(t *testing.T) {
	assignee := int64(7)
	task := domain.Task{ID: 1, OrganizationID: 10, AssignedToID: &assignee}
	editor := domain.User{ID: 3, OrganizationID: 10}
	if !auth.CanEditOrDelete(editor, task, true) {
		t.Fatalf("edit_task holder in same org must pass")
	}
	outsider := domain.User{ID: 3, OrganizationID: 11}
	if auth.CanEditOrDelete(outsider, task, true) {
		t.Fatalf("edit_task holder in other org must fail")
	}
	// Assignee fallback applies without edit_task.
	if !auth.CanEditOrDelete(domain.User{ID: 7, OrganizationID: 10}, task, false) {
		t.Fatalf("assignee without edit_task must pass")
	}
	if auth.CanEditOrDelete(domain.User{ID: 8, OrganizationID: 10}, task, false) {
		t.Fatalf("non-assignee without edit_task must fail")
	}
	unassigned := domain.Task{ID: 2, OrganizationID: 10}
	if auth.CanEditOrDelete(domain.User{ID: 7, OrganizationID: 10}, unassigned, false) {
		t.Fatalf("unassigned task must fail the fallback")
	}
}
