package medzk

import "medzk-go/internal/model"

// AuditLog is the append-only audit collaborator. Entry ids are assigned
// monotonically from 1 and entries are indexed by actor. The core only ever
// appends; it never reads entries back. Holding an AuditLog handle is the
// logger capability: only the coordinator and the identity registry are
// constructed with one.
type AuditLog interface {
	// Append records an event and returns its entry id.
	Append(kind model.EventKind, actor string, ref model.Ref) (int64, error)

	// ByActor returns all entries for an actor in append order.
	ByActor(actor string) ([]*model.AuditEntry, error)

	// Total returns the number of entries appended so far.
	Total() (int64, error)
}
