package database

// Schema is the full current schema as a single script. It must stay in
// lockstep with the migration files; tests apply it directly instead of
// running migrations.
const Schema = `
CREATE TABLE identities (
    actor         TEXT    NOT NULL,
    role          INTEGER NOT NULL,
    registered_at TIMESTAMP NOT NULL,
    PRIMARY KEY (actor, role)
);

CREATE TABLE nullifiers (
    hash    TEXT PRIMARY KEY,
    actor   TEXT NOT NULL,
    used_at TIMESTAMP NOT NULL
);

CREATE TABLE experts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    address       TEXT    NOT NULL UNIQUE,
    specialty     INTEGER NOT NULL,
    active        INTEGER NOT NULL DEFAULT 1,
    registered_at TIMESTAMP NOT NULL
);

CREATE TABLE specialty_members (
    seq       INTEGER PRIMARY KEY AUTOINCREMENT,
    specialty INTEGER NOT NULL,
    expert_id INTEGER NOT NULL UNIQUE REFERENCES experts(id)
);

CREATE INDEX idx_specialty_members_specialty ON specialty_members(specialty);

CREATE TABLE reputation (
    expert_id   INTEGER PRIMARY KEY REFERENCES experts(id),
    base_score  INTEGER NOT NULL,
    last_update TIMESTAMP NOT NULL
);

CREATE TABLE cases (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    patient       TEXT    NOT NULL,
    expert_id     INTEGER REFERENCES experts(id),
    specialty     INTEGER NOT NULL,
    urgency       INTEGER NOT NULL,
    status        INTEGER NOT NULL DEFAULT 0,
    data_ref      BLOB    NOT NULL,
    consent_ref   BLOB,
    diagnosis_ref BLOB,
    created_at    TIMESTAMP NOT NULL,
    assigned_at   TIMESTAMP
);

CREATE INDEX idx_cases_patient ON cases(patient);

CREATE TABLE audit_log (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    kind      INTEGER NOT NULL,
    actor     TEXT    NOT NULL,
    ref       BLOB,
    logged_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_audit_log_actor ON audit_log(actor);
`
