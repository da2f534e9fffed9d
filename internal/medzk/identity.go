package medzk

import (
	"crypto/sha256"
	"fmt"
	"math/big"

	"medzk-go/internal/model"
)

// Authorizer is the capability other components use for role checks. It is
// injected rather than queried ad hoc so the state machine stays free of
// identity-storage details.
type Authorizer interface {
	HasRole(actor string, role model.Role) (bool, error)
}

// IdentityRegistry binds zero-knowledge role claims to actor addresses and
// enforces one registration per underlying credential through the
// used-nullifier set.
type IdentityRegistry struct {
	store    IdentityStore
	verifier ProofVerifier
	audit    AuditLog
	logger   Logger
	clock    Clock
}

func NewIdentityRegistry(store IdentityStore, verifier ProofVerifier, audit AuditLog, logger Logger, clock Clock) *IdentityRegistry {
	return &IdentityRegistry{
		store:    store,
		verifier: verifier,
		audit:    audit,
		logger:   logger,
		clock:    clock,
	}
}

var _ Authorizer = (*IdentityRegistry)(nil)

// Register verifies a role claim proof and grants the claimed role to actor.
// publicInputs must begin with [role, commitmentHash]. The nullifier hash is
// consumed in the same atomic step as the role grant, so a replayed proof can
// never register twice.
//
// extraData is opaque prover-supplied context; it is recorded in the log only.
func (r *IdentityRegistry) Register(actor string, proof *model.Proof, publicInputs []*big.Int, nullifierHash string, extraData []byte) error {
	if len(publicInputs) < 2 || publicInputs[0] == nil {
		return fmt.Errorf("public inputs must carry [role, commitment]: %w", ErrInvalidProof)
	}
	if nullifierHash == "" {
		return ErrInvalidNullifier
	}

	role, ok := roleFromInput(publicInputs[0])
	if !ok {
		return fmt.Errorf("role code %s: %w", publicInputs[0], ErrInvalidRole)
	}

	// Early reject on a consumed nullifier so replay beats proof checking.
	// The store re-checks inside the registration transaction; this lookup
	// is only about error precedence, not correctness.
	used, err := r.store.HasNullifier(nullifierHash)
	if err != nil {
		return fmt.Errorf("checking nullifier: %w", err)
	}
	if used {
		return ErrNullifierReused
	}

	if !r.verifier.Verify(proof, publicInputs) {
		return ErrInvalidProof
	}

	if err := r.store.RegisterRole(actor, role, nullifierHash, r.clock.Now()); err != nil {
		return fmt.Errorf("registering role: %w", err)
	}

	if _, err := r.audit.Append(model.EventRoleRegistered, actor, digestRef([]byte(nullifierHash))); err != nil {
		r.logger.Warn("audit append failed", "event", model.EventRoleRegistered, "actor", actor, "error", err)
	}

	r.logger.Info("role registered", "actor", actor, "role", role, "extra_bytes", len(extraData))
	return nil
}

// HasRole reports whether actor holds role. Pure lookup, no side effects.
func (r *IdentityRegistry) HasRole(actor string, role model.Role) (bool, error) {
	id, err := r.store.GetIdentity(actor)
	if err != nil {
		return false, fmt.Errorf("loading identity: %w", err)
	}
	if id == nil {
		return false, nil
	}
	return id.HasRole(role), nil
}

// Identity returns a copy of the actor's identity record, or nil when the
// actor holds no roles.
func (r *IdentityRegistry) Identity(actor string) (*model.Identity, error) {
	return r.store.GetIdentity(actor)
}

// GrantRole grants a role administratively. The caller must hold Governance.
// This is the path by which governance membership itself is managed.
func (r *IdentityRegistry) GrantRole(caller, actor string, role model.Role) error {
	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if role == model.RoleNone {
		return ErrInvalidRole
	}
	if err := r.store.GrantRole(actor, role, r.clock.Now()); err != nil {
		return fmt.Errorf("granting role: %w", err)
	}
	r.logger.Info("role granted", "caller", caller, "actor", actor, "role", role)
	return nil
}

// RevokeRole removes a role. The caller must hold Governance.
func (r *IdentityRegistry) RevokeRole(caller, actor string, role model.Role) error {
	if err := r.requireGovernance(caller); err != nil {
		return err
	}
	if err := r.store.RevokeRole(actor, role); err != nil {
		return fmt.Errorf("revoking role: %w", err)
	}
	r.logger.Info("role revoked", "caller", caller, "actor", actor, "role", role)
	return nil
}

// SeedGovernance grants Governance to each address. Used once at startup to
// bootstrap the administrative surface from config; granting an already-held
// role is a no-op, so seeding is idempotent.
func (r *IdentityRegistry) SeedGovernance(addrs []string) error {
	now := r.clock.Now()
	for _, a := range addrs {
		if a == "" {
			continue
		}
		if err := r.store.GrantRole(a, model.RoleGovernance, now); err != nil {
			return fmt.Errorf("seeding governance for %s: %w", a, err)
		}
	}
	return nil
}

func (r *IdentityRegistry) requireGovernance(caller string) error {
	ok, err := r.HasRole(caller, model.RoleGovernance)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGovernance
	}
	return nil
}

// roleFromInput converts the first public input to a provable role code.
func roleFromInput(v *big.Int) (model.Role, bool) {
	if !v.IsUint64() || v.Uint64() > 255 {
		return model.RoleNone, false
	}
	role := model.Role(v.Uint64())
	return role, role.Provable()
}

// digestRef folds arbitrary bytes into an audit reference.
func digestRef(b []byte) model.Ref {
	return model.Ref(sha256.Sum256(b))
}
