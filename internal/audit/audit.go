// Package audit records gateway operations in a local SQLite database.
package audit

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one recorded gateway operation.
type Entry struct {
	ID        int64         `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation string        `json:"operation"` // list_emails, fetch_attachment
	Mailbox   string        `json:"mailbox"`
	Details   string        `json:"details"`
	RemoteIP  string        `json:"remote_ip"`
	Status    string        `json:"status"` // ok, error
	Duration  time.Duration `json:"duration"`
}

// Log writes audit entries. A nil Log is valid and records nothing
// (graceful degradation when auditing is disabled).
type Log struct {
	db *sql.DB
}

// Open creates or opens the audit database at path and ensures the
// schema exists.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			operation TEXT NOT NULL,
			mailbox TEXT,
			details TEXT,
			remote_ip TEXT,
			status TEXT NOT NULL,
			duration_ms INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
		CREATE INDEX IF NOT EXISTS idx_audit_operation ON audit_log(operation);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Log{db: db}, nil
}

// Record inserts one entry. The entry's ID and Timestamp are assigned
// by the database.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (operation, mailbox, details, remote_ip, status, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Operation, e.Mailbox, e.Details, e.RemoteIP, e.Status, e.Duration.Milliseconds(),
	)
	return err
}

// QueryFilter narrows a Query.
type QueryFilter struct {
	Operation string
	Mailbox   string
	Status    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// Query returns matching entries, newest first.
func (l *Log) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}

	query := `SELECT id, timestamp, operation, mailbox, details, remote_ip, status, duration_ms FROM audit_log WHERE 1=1`
	args := []interface{}{}

	if filter.Operation != "" {
		query += " AND operation = ?"
		args = append(args, filter.Operation)
	}
	if filter.Mailbox != "" {
		query += " AND mailbox = ?"
		args = append(args, filter.Mailbox)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if !filter.StartTime.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndTime)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Operation, &e.Mailbox, &e.Details, &e.RemoteIP, &e.Status, &durationMS); err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
