package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAuditLogRejectsUpdateAndDelete(t *testing.T) {
	st, err := OpenPath(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	if err := st.InsertAuditEntry(ctx, &AuditEntry{
		ID: "a1", EntityType: "task", EntityID: "T-1", Action: "created", Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("InsertAuditEntry: %v", err)
	}

	for _, stmt := range []string{
		`UPDATE audit_log SET action = 'tampered' WHERE id = 'a1'`,
		`DELETE FROM audit_log WHERE id = 'a1'`,
	} {
		_, err := st.db.ExecContext(ctx, stmt)
		if err == nil || !strings.Contains(err.Error(), "append-only") {
			t.Fatalf("%s: expected append-only rejection, got %v", stmt, err)
		}
	}
}

func TestBuildDSNCarriesPragmas(t *testing.T) {
	dsn := buildDSN("/tmp/x.db")
	for _, want := range []string{"_pragma=journal_mode(WAL)", "_pragma=foreign_keys(1)", "_pragma=busy_timeout(5000)"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q missing %s", dsn, want)
		}
	}
}

func TestMakePlaceholders(t *testing.T) {
	if got := makePlaceholders(3); got != "?,?,?" {
		t.Fatalf("got %q", got)
	}
	if got := makePlaceholders(0); got != "" {
		t.Fatalf("got %q", got)
	}
}
