package medzk

import (
	"time"

	"medzk-go/internal/model"
)

// The store interfaces below are the persistence boundary of the core
// components. Each component owns exactly one of them; cross-component reads
// go through the owning component and return copies, never shared pointers
// into the store. A single backend (internal/database) implements all of
// them over one SQLite file so that compound operations can commit in one
// transaction.

// IdentityStore persists identity records and the used-nullifier set.
type IdentityStore interface {
	// GetIdentity returns the identity for an actor, or nil when the actor
	// has never been granted a role.
	GetIdentity(actor string) (*model.Identity, error)

	// RegisterRole consumes a nullifier and grants a role in one atomic
	// step. Returns ErrNullifierReused when the nullifier hash was consumed
	// by any earlier registration.
	RegisterRole(actor string, role model.Role, nullifierHash string, now time.Time) error

	// GrantRole grants a role without consuming a nullifier (administrative
	// path). Granting an already-held role is a no-op.
	GrantRole(actor string, role model.Role, now time.Time) error

	// RevokeRole removes a role. Revoking a role the actor does not hold is
	// a no-op.
	RevokeRole(actor string, role model.Role) error

	// HasNullifier reports whether a nullifier hash has been consumed.
	HasNullifier(hash string) (bool, error)
}

// ExpertStore persists expert records and the specialty membership index.
type ExpertStore interface {
	// InsertExpert assigns the next expert id, appends the id to its
	// specialty bucket, and seeds the reputation row, all in one
	// transaction. Returns ErrExpertExists when the address is already
	// registered.
	InsertExpert(address string, specialty model.Specialty, initialScore int64, now time.Time) (*model.Expert, error)

	// GetExpert returns the expert with the given id, or nil when absent.
	GetExpert(id int64) (*model.Expert, error)

	// GetExpertByAddress returns the expert registered under the address,
	// or nil when absent.
	GetExpertByAddress(address string) (*model.Expert, error)

	// ExpertIDsBySpecialty returns expert ids in bucket insertion order,
	// inactive ids included.
	ExpertIDsBySpecialty(specialty model.Specialty) ([]int64, error)

	// MoveSpecialty removes the id from its current bucket and appends it
	// to the new one as a single atomic move. Returns ErrUnknownExpert for
	// an unknown id.
	MoveSpecialty(id int64, to model.Specialty) error

	// SetExpertStatus flips the active flag. The specialty index is not
	// touched; inactive experts are filtered at query time.
	SetExpertStatus(id int64, active bool) error
}

// ReputationStore persists scoring state. One row per expert, seeded at
// expert registration.
type ReputationStore interface {
	// GetReputation returns the stored scoring state, or nil when the
	// expert has no row.
	GetReputation(expertID int64) (*model.Reputation, error)

	// SetReputation stores a new base score and resets the decay clock.
	SetReputation(expertID int64, base int64, now time.Time) error
}

// CaseStore persists case records and performs the guarded transitions.
// Guards are restated as conditional updates so that a transition and its
// coupled writes commit together or not at all.
type CaseStore interface {
	// InsertCase assigns the next case id and stores the record.
	InsertCase(c *model.Case) (int64, error)

	// GetCase returns the case with the given id, or nil when absent.
	GetCase(id int64) (*model.Case, error)

	// ListCasesByPatient returns the patient's cases in creation order.
	ListCasesByPatient(patient string) ([]*model.Case, error)

	// MarkAssigned transitions Created -> Assigned and records the expert
	// and assignment time. Returns ErrInvalidTransition when the case is
	// not in Created.
	MarkAssigned(caseID, expertID int64, now time.Time) error

	// RecordDiagnosis transitions Assigned -> DiagnosisSubmitted, stores
	// the diagnosis ref, and writes the expert's new reputation base in the
	// same transaction. This is the one unit that spans two tables; a
	// failed guard leaves both untouched.
	RecordDiagnosis(caseID int64, diagnosisRef model.Ref, expertID int64, newBase int64, now time.Time) error

	// SetCaseStatus transitions from -> to, failing with
	// ErrInvalidTransition when the case is not in from.
	SetCaseStatus(caseID int64, from, to model.CaseStatus) error
}

// Database is the full persistence backend handed to the wiring layer.
type Database interface {
	IdentityStore
	ExpertStore
	ReputationStore
	CaseStore

	// CheckMigrations verifies that the schema is at the latest version.
	CheckMigrations() error

	Close() error
}
