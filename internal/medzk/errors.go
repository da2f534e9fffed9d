package medzk

import "errors"

// Kind classifies a rejected operation. Every precondition failure surfaced
// by this package carries exactly one kind; callers branch on it rather than
// on message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindConflict
	KindState
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindState:
		return "state"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// DomainError is a rejected precondition. Instances below are sentinels:
// errors.Is works on them directly, including through %w wrapping.
type DomainError struct {
	kind Kind
	msg  string
}

func (e *DomainError) Error() string { return e.msg }

func (e *DomainError) Kind() Kind { return e.kind }

func newErr(kind Kind, msg string) *DomainError {
	return &DomainError{kind: kind, msg: msg}
}

var (
	ErrInvalidRole       = newErr(KindValidation, "invalid role")
	ErrInvalidSpecialty  = newErr(KindValidation, "invalid specialty")
	ErrInvalidUrgency    = newErr(KindValidation, "invalid urgency")
	ErrInvalidProof      = newErr(KindValidation, "invalid proof")
	ErrInvalidNullifier  = newErr(KindValidation, "invalid nullifier hash")
	ErrInvalidAddress    = newErr(KindValidation, "invalid actor address")
	ErrInvalidRef        = newErr(KindValidation, "invalid content reference")
	ErrSpecialtyMismatch = newErr(KindValidation, "expert specialty does not match case")
	ErrExpertInactive    = newErr(KindValidation, "expert is not active")
	ErrReputationTooLow  = newErr(KindValidation, "expert reputation below threshold")

	ErrNotPatient         = newErr(KindAuthorization, "not a patient")
	ErrNotDoctor          = newErr(KindAuthorization, "not a doctor")
	ErrNotGovernance      = newErr(KindAuthorization, "not a governance principal")
	ErrNotAssignedExpert  = newErr(KindAuthorization, "caller is not the assigned expert")
	ErrNotCaseParticipant = newErr(KindAuthorization, "caller may not act on this case")
	ErrAccessDenied       = newErr(KindAuthorization, "no access grant for content")

	ErrNullifierReused = newErr(KindConflict, "nullifier reused")
	ErrExpertExists    = newErr(KindConflict, "expert already registered")

	ErrInvalidTransition = newErr(KindState, "invalid state transition")
	ErrContentExpired    = newErr(KindState, "content access expired")

	ErrUnknownExpert     = newErr(KindNotFound, "unknown expert")
	ErrNoQualifiedExpert = newErr(KindNotFound, "no qualified expert available")
	ErrUnknownCase       = newErr(KindNotFound, "unknown case")
	ErrUnknownContent    = newErr(KindNotFound, "unknown content")
)

// KindOf returns the kind of the first DomainError in err's chain, or
// KindUnknown when the chain holds none.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind()
	}
	return KindUnknown
}
