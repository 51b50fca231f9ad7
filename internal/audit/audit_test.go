package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestOpenCreatesSchema(t *testing.T) {
	log := setupTestLog(t)

	var tableName string
	err := log.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='audit_log'").Scan(&tableName)
	if err != nil {
		t.Errorf("audit_log table was not created: %v", err)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	var log *Log

	if err := log.Record(context.Background(), Entry{Operation: "list_emails"}); err != nil {
		t.Errorf("nil Log Record() error = %v", err)
	}
	entries, err := log.Query(context.Background(), QueryFilter{})
	if err != nil || entries != nil {
		t.Errorf("nil Log Query() = %v, %v", entries, err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("nil Log Close() error = %v", err)
	}
}

func TestRecordAndQuery(t *testing.T) {
	log := setupTestLog(t)
	ctx := context.Background()

	entries := []Entry{
		{Operation: "list_emails", Mailbox: "INBOX", Details: "limit=10", RemoteIP: "10.0.0.1", Status: "ok", Duration: 120 * time.Millisecond},
		{Operation: "fetch_attachment", Mailbox: "INBOX", Details: "filename=a.pdf", RemoteIP: "10.0.0.2", Status: "error", Duration: 40 * time.Millisecond},
		{Operation: "list_emails", Mailbox: "Archive", Status: "ok"},
	}
	for _, e := range entries {
		if err := log.Record(ctx, e); err != nil {
			t.Fatalf("Record(%+v) error = %v", e, err)
		}
	}

	all, err := log.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Query() returned %d entries, want 3", len(all))
	}

	lists, err := log.Query(ctx, QueryFilter{Operation: "list_emails"})
	if err != nil {
		t.Fatalf("Query(operation) error = %v", err)
	}
	if len(lists) != 2 {
		t.Errorf("operation filter returned %d entries, want 2", len(lists))
	}

	failed, err := log.Query(ctx, QueryFilter{Status: "error"})
	if err != nil {
		t.Fatalf("Query(status) error = %v", err)
	}
	if len(failed) != 1 || failed[0].Operation != "fetch_attachment" {
		t.Errorf("status filter = %+v", failed)
	}
	if failed[0].Duration != 40*time.Millisecond {
		t.Errorf("Duration = %v, want 40ms", failed[0].Duration)
	}

	limited, err := log.Query(ctx, QueryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("Query(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit filter returned %d entries, want 1", len(limited))
	}
}
