package audit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/kalyangoud145/secure-task-management/internal/audit"
)

func TestAppendAndEntries(t *testing.T) {
	rec := audit.NewRecorder()
	rec.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	target := int64(42)
	rec.Append(1, audit.ActionCreateTask, &target)
	rec.Append(1, audit.ActionListTasks, nil)

	entries := rec.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != audit.ActionCreateTask || entries[0].TargetID == nil || *entries[0].TargetID != 42 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].TargetID != nil {
		t.Fatalf("list entry must not carry a target")
	}
	if entries[0].Timestamp != "2024-06-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %s", entries[0].Timestamp)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	rec := audit.NewRecorder()
	rec.Append(1, audit.ActionEditTask, nil)
	entries := rec.Entries()
	entries[0].Action = "TAMPERED"
	if rec.Entries()[0].Action != audit.ActionEditTask {
		t.Fatalf("mutating the returned slice must not affect the recorder")
	}
}

func TestConcurrentAppends(t *testing.T) {
	rec := audit.NewRecorder()
	const writers = 8
	const perWriter = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				rec.Append(userID, audit.ActionUpdateStatus, nil)
			}
		}(int64(w))
	}
	wg.Wait()
	if rec.Len() != writers*perWriter {
		t.Fatalf("expected %d entries, got %d", writers*perWriter, rec.Len())
	}
}
