package audit

import (
	"sync"
	"time"

	"github.com/kalyangoud145/secure-task-management/internal/domain"
)

// Actions recorded by the engine.
const (
	ActionCreateTask   = "CREATE_TASK"
	ActionListTasks    = "LIST_TASKS"
	ActionEditTask     = "EDIT_TASK"
	ActionDeleteTask   = "DELETE_TASK"
	ActionUpdateOrder  = "UPDATE_ORDER"
	ActionUpdateStatus = "UPDATE_STATUS"
)

// Recorder is a process-wide append-only log of successful mutating actions.
// It lives in memory only; entries are ordered by completion time and never
// removed for the lifetime of the process.
type Recorder struct {
	Now func() time.Time

	mu      sync.Mutex
	entries []domain.AuditEntry
}

func NewRecorder() *Recorder {
	return &Recorder{Now: time.Now}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Append records one action. Callers must append only after the store
// mutation has committed.
func (r *Recorder) Append(userID int64, action string, targetID *int64) {
	entry := domain.AuditEntry{
		UserID:    userID,
		Action:    action,
		TargetID:  targetID,
		Timestamp: r.now().UTC().Format(time.RFC3339),
	}
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

// Entries returns the full log in append order.
func (r *Recorder) Entries() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len reports the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
