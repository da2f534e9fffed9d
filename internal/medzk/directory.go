package medzk

import (
	"fmt"

	"medzk-go/internal/model"
)

// ExpertDirectory holds the roster of specialist experts and the
// specialty membership index. All mutations are Governance-gated.
type ExpertDirectory struct {
	store        ExpertStore
	authz        Authorizer
	logger       Logger
	clock        Clock
	initialScore int64
}

// NewExpertDirectory creates a directory. initialScore seeds the reputation
// row for each newly registered expert.
func NewExpertDirectory(store ExpertStore, authz Authorizer, logger Logger, clock Clock, initialScore int64) *ExpertDirectory {
	return &ExpertDirectory{
		store:        store,
		authz:        authz,
		logger:       logger,
		clock:        clock,
		initialScore: initialScore,
	}
}

// RegisterExpert assigns the next expert id and seeds its reputation.
// The caller must hold Governance.
func (d *ExpertDirectory) RegisterExpert(caller, address string, specialty model.Specialty) (*model.Expert, error) {
	if err := d.requireGovernance(caller); err != nil {
		return nil, err
	}
	if address == "" {
		return nil, fmt.Errorf("empty expert address: %w", ErrInvalidAddress)
	}
	if !specialty.Valid() {
		return nil, fmt.Errorf("specialty code %d: %w", specialty, ErrInvalidSpecialty)
	}

	exp, err := d.store.InsertExpert(address, specialty, d.initialScore, d.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("registering expert: %w", err)
	}

	d.logger.Info("expert registered", "expert_id", exp.ID, "address", address, "specialty", specialty)
	return exp, nil
}

// UpdateSpecialty moves the expert between specialty buckets as one atomic
// move. The caller must hold Governance.
func (d *ExpertDirectory) UpdateSpecialty(caller string, expertID int64, specialty model.Specialty) error {
	if err := d.requireGovernance(caller); err != nil {
		return err
	}
	if !specialty.Valid() {
		return fmt.Errorf("specialty code %d: %w", specialty, ErrInvalidSpecialty)
	}
	if err := d.store.MoveSpecialty(expertID, specialty); err != nil {
		return fmt.Errorf("updating specialty: %w", err)
	}
	d.logger.Info("specialty updated", "expert_id", expertID, "specialty", specialty)
	return nil
}

// SetExpertStatus flips the active flag. Inactive experts stay in their
// specialty bucket and are filtered at query time. The caller must hold
// Governance.
func (d *ExpertDirectory) SetExpertStatus(caller string, expertID int64, active bool) error {
	if err := d.requireGovernance(caller); err != nil {
		return err
	}
	if err := d.store.SetExpertStatus(expertID, active); err != nil {
		return fmt.Errorf("setting expert status: %w", err)
	}
	d.logger.Info("expert status changed", "expert_id", expertID, "active", active)
	return nil
}

// Expert returns a copy of the expert record. Fails with ErrUnknownExpert.
func (d *ExpertDirectory) Expert(expertID int64) (*model.Expert, error) {
	exp, err := d.store.GetExpert(expertID)
	if err != nil {
		return nil, fmt.Errorf("loading expert: %w", err)
	}
	if exp == nil {
		return nil, fmt.Errorf("expert %d: %w", expertID, ErrUnknownExpert)
	}
	return exp, nil
}

// ExpertIDByAddress resolves an expert address to its id.
func (d *ExpertDirectory) ExpertIDByAddress(address string) (int64, error) {
	exp, err := d.store.GetExpertByAddress(address)
	if err != nil {
		return 0, fmt.Errorf("loading expert by address: %w", err)
	}
	if exp == nil {
		return 0, fmt.Errorf("address %s: %w", address, ErrUnknownExpert)
	}
	return exp.ID, nil
}

// ExpertsBySpecialty returns the bucket's ids in insertion order. Inactive
// ids are included; callers filter.
func (d *ExpertDirectory) ExpertsBySpecialty(specialty model.Specialty) ([]int64, error) {
	return d.store.ExpertIDsBySpecialty(specialty)
}

// IsActiveExpert reports whether the id exists and is active.
func (d *ExpertDirectory) IsActiveExpert(expertID int64) (bool, error) {
	exp, err := d.store.GetExpert(expertID)
	if err != nil {
		return false, fmt.Errorf("loading expert: %w", err)
	}
	return exp != nil && exp.Active, nil
}

// Exists reports whether the id has a record. Used by the reputation ledger
// for its delegated existence check.
func (d *ExpertDirectory) Exists(expertID int64) (bool, error) {
	exp, err := d.store.GetExpert(expertID)
	if err != nil {
		return false, fmt.Errorf("loading expert: %w", err)
	}
	return exp != nil, nil
}

func (d *ExpertDirectory) requireGovernance(caller string) error {
	ok, err := d.authz.HasRole(caller, model.RoleGovernance)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotGovernance
	}
	return nil
}
