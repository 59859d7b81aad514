package stmsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal task API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Order       int    `json:"order"`
}

// CategoryGroup groups tasks under one category.
type CategoryGroup struct {
	Category string `json:"category"`
	Tasks    []Task `json:"tasks"`
}

// AuditEntry is one line of the server's audit trail.
type AuditEntry struct {
	UserID    int64  `json:"userId"`
	Action    string `json:"action"`
	TargetID  *int64 `json:"targetId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a JWT and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

// CreateTask creates a task assigned to the caller.
func (c *Client) CreateTask(ctx context.Context, title, description, category, status string) (Task, error) {
	body := map[string]string{"title": title}
	if description != "" {
		body["description"] = description
	}
	if category != "" {
		body["category"] = category
	}
	if status != "" {
		body["status"] = status
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// ListOptions narrow a task listing.
type ListOptions struct {
	Sort     string
	Category string
	Status   string
}

// ListTasks returns the tasks the caller may see.
func (c *Client) ListTasks(ctx context.Context, opts ListOptions) ([]Task, error) {
	q := url.Values{}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Category != "" {
		q.Set("category", opts.Category)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ListTasksByCategory groups visible tasks by category.
func (c *Client) ListTasksByCategory(ctx context.Context) ([]CategoryGroup, error) {
	var resp []CategoryGroup
	err := c.do(ctx, http.MethodGet, "tasks/by-category", nil, &resp)
	return resp, err
}

// EditTask updates the provided task fields; nil leaves a field unchanged.
func (c *Client) EditTask(ctx context.Context, id int64, title, description, category, status *string) (Task, error) {
	body := map[string]any{}
	if title != nil {
		body["title"] = *title
	}
	if description != nil {
		body["description"] = *description
	}
	if category != nil {
		body["category"] = *category
	}
	if status != nil {
		body["status"] = *status
	}
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d", id), body, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("tasks/%d", id), nil, &resp)
}

// UpdateTaskOrder overwrites a task's order value.
func (c *Client) UpdateTaskOrder(ctx context.Context, id int64, order int) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d/order", id), map[string]int{"order": order}, &resp)
	return resp, err
}

// UpdateTaskStatus sets a task's status.
func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d/status", id), map[string]string{"status": status}, &resp)
	return resp, err
}

// AuditLog returns the server's audit trail.
func (c *Client) AuditLog(ctx context.Context) ([]AuditEntry, error) {
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, "audit-log", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.Trim(c.BasePath, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
