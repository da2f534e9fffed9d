package audit

import (
	"database/sql"
	"fmt"
	"strings"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// SQLiteLog is a SQLite-backed implementation of the AuditLog interface.
// It shares the database connection with the primary store so audit entries
// land in the same file. Actor addresses are stored lowercased so lookups
// are case-insensitive.
type SQLiteLog struct {
	db    *sql.DB
	clock medzk.Clock
}

// NewSQLiteLog creates an audit log on top of an open database connection.
// The caller retains ownership of the connection.
func NewSQLiteLog(db *sql.DB, clock medzk.Clock) *SQLiteLog {
	return &SQLiteLog{db: db, clock: clock}
}

// Append records an event and returns its entry id.
func (l *SQLiteLog) Append(kind model.EventKind, actor string, ref model.Ref) (int64, error) {
	var refBytes []byte
	if !ref.IsZero() {
		refBytes = ref[:]
	}

	res, err := l.db.Exec(
		`INSERT INTO audit_log (kind, actor, ref, logged_at) VALUES (?, ?, ?, ?)`,
		kind, strings.ToLower(actor), refBytes, l.clock.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting audit entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting audit entry id: %w", err)
	}
	return id, nil
}

// ByActor returns all entries for an actor in append order.
func (l *SQLiteLog) ByActor(actor string) ([]*model.AuditEntry, error) {
	rows, err := l.db.Query(
		`SELECT id, kind, actor, ref, logged_at FROM audit_log WHERE actor = ? ORDER BY id`,
		strings.ToLower(actor),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var refBytes []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.Actor, &refBytes, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		copy(e.Ref[:], refBytes)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}

// Total returns the number of entries appended so far.
func (l *SQLiteLog) Total() (int64, error) {
	var n int64
	if err := l.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit entries: %w", err)
	}
	return n, nil
}

// Compile-time check that SQLiteLog implements the AuditLog interface
var _ medzk.AuditLog = (*SQLiteLog)(nil)
