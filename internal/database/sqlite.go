package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"medzk-go/internal/database/migrations"
	"medzk-go/internal/medzk"
	"medzk-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the medzk store interfaces using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

var _ medzk.Database = (*SQLiteDatabase)(nil)

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent (each pooled
	// connection would otherwise see its own empty database) and sidesteps
	// writer/reader lock contention on file databases.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection so collaborators that share the
// database file (the audit log) can reuse it.
func (s *SQLiteDatabase) DB() *sql.DB { return s.db }

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp brings the schema to the latest version.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Identity operations

func (s *SQLiteDatabase) GetIdentity(actor string) (*model.Identity, error) {
	rows, err := s.db.Query(
		`SELECT role, registered_at FROM identities WHERE actor = ? ORDER BY registered_at, role`,
		actor)
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}
	defer rows.Close()

	var id *model.Identity
	for rows.Next() {
		var role model.Role
		var at time.Time
		if err := rows.Scan(&role, &at); err != nil {
			return nil, fmt.Errorf("scanning identity row: %w", err)
		}
		if id == nil {
			id = &model.Identity{Actor: actor, RegisteredAt: at}
		}
		id.Roles = append(id.Roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading identity rows: %w", err)
	}
	return id, nil
}

// RegisterRole consumes the nullifier and grants the role in one
// transaction. The nullifier insert doubles as the uniqueness check: a
// conflicting hash inserts zero rows and the whole unit rolls back.
func (s *SQLiteDatabase) RegisterRole(actor string, role model.Role, nullifierHash string, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT OR IGNORE INTO nullifiers (hash, actor, used_at) VALUES (?, ?, ?)`,
		nullifierHash, actor, now)
	if err != nil {
		return fmt.Errorf("inserting nullifier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking nullifier insert: %w", err)
	}
	if n == 0 {
		return medzk.ErrNullifierReused
	}

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO identities (actor, role, registered_at) VALUES (?, ?, ?)`,
		actor, role, now); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) GrantRole(actor string, role model.Role, now time.Time) error {
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO identities (actor, role, registered_at) VALUES (?, ?, ?)`,
		actor, role, now); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) RevokeRole(actor string, role model.Role) error {
	if _, err := s.db.Exec(
		`DELETE FROM identities WHERE actor = ? AND role = ?`, actor, role); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) HasNullifier(hash string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM nullifiers WHERE hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying nullifier: %w", err)
	}
	return true, nil
}

// Expert operations

// InsertExpert atomically creates the expert row, appends the id to its
// specialty bucket, and seeds the reputation row.
func (s *SQLiteDatabase) InsertExpert(address string, specialty model.Specialty, initialScore int64, now time.Time) (*model.Expert, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT id FROM experts WHERE address = ?`, address).Scan(&existing)
	if err == nil {
		return nil, medzk.ErrExpertExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checking for existing expert: %w", err)
	}

	res, err := tx.Exec(
		`INSERT INTO experts (address, specialty, active, registered_at) VALUES (?, ?, 1, ?)`,
		address, specialty, now)
	if err != nil {
		return nil, fmt.Errorf("inserting expert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading expert id: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO specialty_members (specialty, expert_id) VALUES (?, ?)`,
		specialty, id); err != nil {
		return nil, fmt.Errorf("indexing specialty: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO reputation (expert_id, base_score, last_update) VALUES (?, ?, ?)`,
		id, initialScore, now); err != nil {
		return nil, fmt.Errorf("seeding reputation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	return &model.Expert{
		ID:           id,
		Address:      address,
		Specialty:    specialty,
		Active:       true,
		RegisteredAt: now,
	}, nil
}

func (s *SQLiteDatabase) GetExpert(id int64) (*model.Expert, error) {
	return s.scanExpert(s.db.QueryRow(
		`SELECT id, address, specialty, active, registered_at FROM experts WHERE id = ?`, id))
}

func (s *SQLiteDatabase) GetExpertByAddress(address string) (*model.Expert, error) {
	return s.scanExpert(s.db.QueryRow(
		`SELECT id, address, specialty, active, registered_at FROM experts WHERE address = ?`, address))
}

func (s *SQLiteDatabase) scanExpert(row *sql.Row) (*model.Expert, error) {
	var e model.Expert
	err := row.Scan(&e.ID, &e.Address, &e.Specialty, &e.Active, &e.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning expert: %w", err)
	}
	return &e, nil
}

func (s *SQLiteDatabase) ExpertIDsBySpecialty(specialty model.Specialty) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT expert_id FROM specialty_members WHERE specialty = ? ORDER BY seq`, specialty)
	if err != nil {
		return nil, fmt.Errorf("querying specialty bucket: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning bucket row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading bucket rows: %w", err)
	}
	return ids, nil
}

// MoveSpecialty re-buckets the expert as one transaction: the delete and the
// append either both land or neither does, so the index never holds an
// expert in two buckets or in none.
func (s *SQLiteDatabase) MoveSpecialty(id int64, to model.Specialty) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE experts SET specialty = ? WHERE id = ?`, to, id)
	if err != nil {
		return fmt.Errorf("updating expert specialty: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking specialty update: %w", err)
	} else if n == 0 {
		return medzk.ErrUnknownExpert
	}

	if _, err := tx.Exec(`DELETE FROM specialty_members WHERE expert_id = ?`, id); err != nil {
		return fmt.Errorf("removing from old bucket: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO specialty_members (specialty, expert_id) VALUES (?, ?)`, to, id); err != nil {
		return fmt.Errorf("appending to new bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) SetExpertStatus(id int64, active bool) error {
	res, err := s.db.Exec(`UPDATE experts SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating expert status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking status update: %w", err)
	} else if n == 0 {
		return medzk.ErrUnknownExpert
	}
	return nil
}

// Reputation operations

func (s *SQLiteDatabase) GetReputation(expertID int64) (*model.Reputation, error) {
	var r model.Reputation
	err := s.db.QueryRow(
		`SELECT expert_id, base_score, last_update FROM reputation WHERE expert_id = ?`,
		expertID).Scan(&r.ExpertID, &r.BaseScore, &r.LastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reputation: %w", err)
	}
	return &r, nil
}

func (s *SQLiteDatabase) SetReputation(expertID int64, base int64, now time.Time) error {
	res, err := s.db.Exec(
		`UPDATE reputation SET base_score = ?, last_update = ? WHERE expert_id = ?`,
		base, now, expertID)
	if err != nil {
		return fmt.Errorf("updating reputation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking reputation update: %w", err)
	} else if n == 0 {
		return medzk.ErrUnknownExpert
	}
	return nil
}

// Case operations

func (s *SQLiteDatabase) InsertCase(c *model.Case) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO cases (patient, specialty, urgency, status, data_ref, consent_ref, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Patient, c.Specialty, c.Urgency, c.Status, c.DataRef[:], nullableRef(c.ConsentRef), c.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting case: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading case id: %w", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) GetCase(id int64) (*model.Case, error) {
	return s.scanCase(s.db.QueryRow(
		`SELECT id, patient, expert_id, specialty, urgency, status,
		        data_ref, consent_ref, diagnosis_ref, created_at, assigned_at
		 FROM cases WHERE id = ?`, id))
}

func (s *SQLiteDatabase) ListCasesByPatient(patient string) ([]*model.Case, error) {
	rows, err := s.db.Query(
		`SELECT id, patient, expert_id, specialty, urgency, status,
		        data_ref, consent_ref, diagnosis_ref, created_at, assigned_at
		 FROM cases WHERE patient = ? ORDER BY id`, patient)
	if err != nil {
		return nil, fmt.Errorf("querying cases: %w", err)
	}
	defer rows.Close()

	var cases []*model.Case
	for rows.Next() {
		c, err := scanCaseColumns(rows.Scan)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading case rows: %w", err)
	}
	return cases, nil
}

func (s *SQLiteDatabase) scanCase(row *sql.Row) (*model.Case, error) {
	c, err := scanCaseColumns(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return c, nil
}

func scanCaseColumns(scan func(...any) error) (*model.Case, error) {
	var c model.Case
	var expertID sql.NullInt64
	var consentRef, diagnosisRef []byte
	var dataRef []byte
	var assignedAt sql.NullTime

	err := scan(&c.ID, &c.Patient, &expertID, &c.Specialty, &c.Urgency, &c.Status,
		&dataRef, &consentRef, &diagnosisRef, &c.CreatedAt, &assignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning case: %w", err)
	}

	c.ExpertID = expertID.Int64
	copy(c.DataRef[:], dataRef)
	copy(c.ConsentRef[:], consentRef)
	copy(c.DiagnosisRef[:], diagnosisRef)
	if assignedAt.Valid {
		c.AssignedAt = assignedAt.Time
	}
	return &c, nil
}

// MarkAssigned transitions Created -> Assigned. The guard is restated in the
// WHERE clause so a case that already moved on is left untouched.
func (s *SQLiteDatabase) MarkAssigned(caseID, expertID int64, now time.Time) error {
	res, err := s.db.Exec(
		`UPDATE cases SET status = ?, expert_id = ?, assigned_at = ? WHERE id = ? AND status = ?`,
		model.CaseAssigned, expertID, now, caseID, model.CaseCreated)
	if err != nil {
		return fmt.Errorf("assigning case: %w", err)
	}
	return classifyCaseUpdate(s.db, res, caseID)
}

// RecordDiagnosis is the one unit spanning two tables: the case transition
// and the expert's new reputation base commit together or not at all.
func (s *SQLiteDatabase) RecordDiagnosis(caseID int64, diagnosisRef model.Ref, expertID int64, newBase int64, now time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE cases SET status = ?, diagnosis_ref = ? WHERE id = ? AND status = ? AND expert_id = ?`,
		model.CaseDiagnosisSubmitted, diagnosisRef[:], caseID, model.CaseAssigned, expertID)
	if err != nil {
		return fmt.Errorf("recording diagnosis: %w", err)
	}
	if err := classifyCaseUpdate(tx, res, caseID); err != nil {
		return err
	}

	res, err = tx.Exec(
		`UPDATE reputation SET base_score = ?, last_update = ? WHERE expert_id = ?`,
		newBase, now, expertID)
	if err != nil {
		return fmt.Errorf("updating reputation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking reputation update: %w", err)
	} else if n == 0 {
		return medzk.ErrUnknownExpert
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) SetCaseStatus(caseID int64, from, to model.CaseStatus) error {
	res, err := s.db.Exec(
		`UPDATE cases SET status = ? WHERE id = ? AND status = ?`, to, caseID, from)
	if err != nil {
		return fmt.Errorf("updating case status: %w", err)
	}
	return classifyCaseUpdate(s.db, res, caseID)
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// classifyCaseUpdate distinguishes "no such case" from "wrong state" when a
// guarded update touched no rows. The existence probe must run on the same
// transaction (or connection) as the update.
func classifyCaseUpdate(q rowQuerier, res sql.Result, caseID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking case update: %w", err)
	}
	if n > 0 {
		return nil
	}
	var one int
	err = q.QueryRow(`SELECT 1 FROM cases WHERE id = ?`, caseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return medzk.ErrUnknownCase
	}
	if err != nil {
		return fmt.Errorf("checking case existence: %w", err)
	}
	return medzk.ErrInvalidTransition
}

// nullableRef maps a zero ref to NULL.
func nullableRef(r model.Ref) any {
	if r.IsZero() {
		return nil
	}
	return r[:]
}
