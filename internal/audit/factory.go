package audit

import (
	"database/sql"
	"fmt"

	"medzk-go/internal/config"
	"medzk-go/internal/medzk"
)

// NewAuditLogFromConfig creates an AuditLog based on the config type. The
// sqlite variant records entries on the primary database connection.
func NewAuditLogFromConfig(cfg config.AuditConfig, db *sql.DB, clock medzk.Clock) (medzk.AuditLog, error) {
	switch cfg.Type {
	case "sqlite", "":
		if db == nil {
			return nil, fmt.Errorf("sqlite audit log requires an open database")
		}
		return NewSQLiteLog(db, clock), nil
	case "memory":
		return NewMemoryLog(clock), nil
	default:
		return nil, fmt.Errorf("unknown audit log type: %s", cfg.Type)
	}
}
