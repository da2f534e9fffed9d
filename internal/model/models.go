package model

import (
	"math/big"
	"time"
)

// Role is a participation right an actor can hold. An actor may hold several
// roles at once.
type Role uint8

const (
	RoleNone       Role = 0
	RolePatient    Role = 1
	RoleDoctor     Role = 2
	RoleExpert     Role = 3
	RoleGovernance Role = 4
)

// ProvableRoles is the closed set of role codes a zero-knowledge role claim
// may register. Governance is granted administratively, never by proof.
var ProvableRoles = []Role{RolePatient, RoleDoctor, RoleExpert}

func (r Role) Provable() bool {
	for _, p := range ProvableRoles {
		if r == p {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	switch r {
	case RolePatient:
		return "patient"
	case RoleDoctor:
		return "doctor"
	case RoleExpert:
		return "expert"
	case RoleGovernance:
		return "governance"
	default:
		return "none"
	}
}

// Specialty is an enumerated medical domain code used to match cases to
// qualified experts.
type Specialty uint32

const (
	SpecialtyCardiology Specialty = 1
	SpecialtyNeurology  Specialty = 2
	SpecialtyOncology   Specialty = 3
	SpecialtyRadiology  Specialty = 4
)

func (s Specialty) Valid() bool {
	return s >= SpecialtyCardiology && s <= SpecialtyRadiology
}

func (s Specialty) String() string {
	switch s {
	case SpecialtyCardiology:
		return "cardiology"
	case SpecialtyNeurology:
		return "neurology"
	case SpecialtyOncology:
		return "oncology"
	case SpecialtyRadiology:
		return "radiology"
	default:
		return "unknown"
	}
}

// Urgency ranks how quickly a case needs attention.
type Urgency uint8

const (
	UrgencyLow    Urgency = 0
	UrgencyMedium Urgency = 1
	UrgencyHigh   Urgency = 2
)

func (u Urgency) Valid() bool { return u <= UrgencyHigh }

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// CaseStatus is the workflow state of a consultation case.
// Transitions only ever move forward; Closed and Disputed are terminal.
type CaseStatus uint8

const (
	CaseCreated            CaseStatus = 0
	CaseAssigned           CaseStatus = 1
	CaseDiagnosisSubmitted CaseStatus = 2
	CaseClosed             CaseStatus = 3
	CaseDisputed           CaseStatus = 4
)

func (s CaseStatus) Terminal() bool { return s == CaseClosed || s == CaseDisputed }

func (s CaseStatus) String() string {
	switch s {
	case CaseCreated:
		return "created"
	case CaseAssigned:
		return "assigned"
	case CaseDiagnosisSubmitted:
		return "diagnosis-submitted"
	case CaseClosed:
		return "closed"
	case CaseDisputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// EventKind classifies audit log entries.
type EventKind uint8

const (
	EventCaseCreated        EventKind = 0
	EventCaseAssigned       EventKind = 1
	EventDiagnosisSubmitted EventKind = 2
	EventRoleRegistered     EventKind = 3
	EventExpertRegistered   EventKind = 4
	EventCaseClosed         EventKind = 5
	EventCaseDisputed       EventKind = 6
)

func (k EventKind) String() string {
	switch k {
	case EventCaseCreated:
		return "case-created"
	case EventCaseAssigned:
		return "case-assigned"
	case EventDiagnosisSubmitted:
		return "diagnosis-submitted"
	case EventRoleRegistered:
		return "role-registered"
	case EventExpertRegistered:
		return "expert-registered"
	case EventCaseClosed:
		return "case-closed"
	case EventCaseDisputed:
		return "case-disputed"
	default:
		return "unknown"
	}
}

// Ref is an opaque 32-byte content reference (a payload digest, a consent
// commitment, a diagnosis digest). The zero value means "unset".
type Ref [32]byte

func (r Ref) IsZero() bool { return r == Ref{} }

// Proof is a Groth16 proof tuple as produced by the prover: two G1 points
// (A, C) and one G2 point (B), each coordinate a field element.
type Proof struct {
	A [2]*big.Int
	B [2][2]*big.Int
	C [2]*big.Int
}

// WellFormed reports whether every coordinate of the tuple is present.
// It says nothing about the proof being valid.
func (p *Proof) WellFormed() bool {
	if p == nil {
		return false
	}
	for _, v := range []*big.Int{p.A[0], p.A[1], p.C[0], p.C[1],
		p.B[0][0], p.B[0][1], p.B[1][0], p.B[1][1]} {
		if v == nil {
			return false
		}
	}
	return true
}

// Identity is the set of verified roles held by an actor address.
type Identity struct {
	Actor        string
	Roles        []Role
	RegisteredAt time.Time
}

func (i *Identity) HasRole(role Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expert is a directory record for a specialist. IDs are assigned
// monotonically starting at 1.
type Expert struct {
	ID           int64
	Address      string
	Specialty    Specialty
	Active       bool
	RegisteredAt time.Time
}

// Reputation is the stored scoring state for an expert. The current score is
// derived from BaseScore and LastUpdate via the decay policy, never stored.
type Reputation struct {
	ExpertID   int64
	BaseScore  int64
	LastUpdate time.Time
}

// Case is a consultation case record. Cases are never deleted; terminal
// states are retained for audit.
type Case struct {
	ID           int64
	Patient      string
	ExpertID     int64 // 0 until assignment
	Specialty    Specialty
	Urgency      Urgency
	Status       CaseStatus
	DataRef      Ref
	ConsentRef   Ref
	DiagnosisRef Ref
	CreatedAt    time.Time
	AssignedAt   time.Time
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID       int64
	Kind     EventKind
	Actor    string
	Ref      Ref
	LoggedAt time.Time
}
