package domain

type Organization struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name" enum:"Viewer,Admin,Owner"`
}

type Permission struct {
	ID   int64  `json:"id"`
	Name string `json:"name" enum:"create_task,edit_task,delete_task,view_task"`
}

type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	RoleID         int64  `json:"role_id"`
	RoleName       string `json:"role_name"`
	OrganizationID int64  `json:"organization_id"`
}

// Principal is the already-authenticated identity attached to a request.
// The engine trusts it verbatim; token verification happens in the server layer.
type Principal struct {
	ID             int64  `json:"id"`
	RoleName       string `json:"role"`
	OrganizationID int64  `json:"org_id"`
}

type Task struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	Order          int    `json:"order"`
	AssignedToID   *int64 `json:"assigned_to_id,omitempty"`
	OrganizationID int64  `json:"organization_id"`
}

// TaskView is the sanitized task shape returned to callers. Organization and
// assignee identifiers never leave the engine.
type TaskView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Order       int    `json:"order"`
}

// View strips internal relations from a task.
func (t Task) View() TaskView {
	return TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    t.Category,
		Status:      t.Status,
		Order:       t.Order,
	}
}

type CategoryGroup struct {
	Category string     `json:"category"`
	Tasks    []TaskView `json:"tasks"`
}

type AuditEntry struct {
	UserID    int64  `json:"userId"`
	Action    string `json:"action"`
	TargetID  *int64 `json:"targetId,omitempty"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
