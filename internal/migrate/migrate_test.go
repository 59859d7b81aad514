package migrate

import (
	"context"
	"testing"

	"github.com/kalyangoud145/secure-task-management/internal/db"
)

func TestMigrateIsIdempotentAndRecordsLedger(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()

	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	if n != 2 {
		t.Fatalf("ledger rows = %d, want 2", n)
	}
	var name, appliedAt string
	if err := conn.QueryRow(`SELECT name, applied_at FROM schema_migrations WHERE version=1`).Scan(&name, &appliedAt); err != nil {
		t.Fatalf("read ledger row: %v", err)
	}
	if name != "001_init.sql" || appliedAt == "" {
		t.Fatalf("unexpected ledger row: %s %s", name, appliedAt)
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		name    string
		version int
		ok      bool
	}{
		{"001_init.sql", 1, true},
		{"002_api_keys.sql", 2, true},
		{"init.sql", 0, false},
		{"x_init.sql", 0, false},
		{"0_zero.sql", 0, false},
	}
	for _, c := range cases {
		v, err := parseVersion(c.name)
		if c.ok && (err != nil || v != c.version) {
			t.Fatalf("%s: got %d, %v", c.name, v, err)
		}
		if !c.ok && err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}
