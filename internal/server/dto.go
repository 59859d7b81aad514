package server

import (
	"github.com/kalyangoud145/secure-task-management/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status,omitempty"`
}

type EditTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Status      *string `json:"status,omitempty"`
}

type UpdateOrderRequest struct {
	Order int `json:"order"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Response payloads

type LoginResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	ID             int64    `json:"id"`
	Email          string   `json:"email"`
	Role           string   `json:"role"`
	OrganizationID int64    `json:"organizationId"`
	Permissions    []string `json:"permissions"`
}

type TaskResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Order       int    `json:"order"`
}

type CategoryGroupResponse struct {
	Category string         `json:"category"`
	Tasks    []TaskResponse `json:"tasks"`
}

type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

type AuditEntryResponse struct {
	UserID    int64  `json:"userId"`
	Action    string `json:"action"`
	TargetID  *int64 `json:"targetId,omitempty"`
	Timestamp string `json:"timestamp" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CreatedAPIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Conversion helpers

func taskResponse(t domain.TaskView) TaskResponse {
	return TaskResponse(t)
}

func mapTasks(tasks []domain.TaskView) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

func mapCategoryGroups(groups []domain.CategoryGroup) []CategoryGroupResponse {
	out := make([]CategoryGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, CategoryGroupResponse{
			Category: g.Category,
			Tasks:    mapTasks(g.Tasks),
		})
	}
	return out
}

func mapAuditEntries(entries []domain.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse(e))
	}
	return out
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt}
}
