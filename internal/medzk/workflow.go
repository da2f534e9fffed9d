package medzk

import (
	"encoding/binary"
	"fmt"

	"medzk-go/internal/model"
)

// CaseWorkflow owns case records and their state machine:
//
//	Created -> Assigned -> DiagnosisSubmitted -> Closed
//	                                         \-> Disputed
//
// Every transition is committed through a conditional update keyed on the
// source state, so a stale read can never move a case backwards.
type CaseWorkflow struct {
	store  CaseStore
	authz  Authorizer
	logger Logger
	clock  Clock
}

func NewCaseWorkflow(store CaseStore, authz Authorizer, logger Logger, clock Clock) *CaseWorkflow {
	return &CaseWorkflow{
		store:  store,
		authz:  authz,
		logger: logger,
		clock:  clock,
	}
}

// CreateCase opens a new case in state Created. The caller must hold the
// Patient role.
func (w *CaseWorkflow) CreateCase(patient string, dataRef, consentRef model.Ref, specialty model.Specialty, urgency model.Urgency) (int64, error) {
	ok, err := w.authz.HasRole(patient, model.RolePatient)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotPatient
	}
	if !specialty.Valid() {
		return 0, fmt.Errorf("specialty code %d: %w", specialty, ErrInvalidSpecialty)
	}
	if !urgency.Valid() {
		return 0, fmt.Errorf("urgency code %d: %w", urgency, ErrInvalidUrgency)
	}
	if dataRef.IsZero() {
		return 0, fmt.Errorf("case data reference required: %w", ErrInvalidRef)
	}

	id, err := w.store.InsertCase(&model.Case{
		Patient:    patient,
		Specialty:  specialty,
		Urgency:    urgency,
		Status:     model.CaseCreated,
		DataRef:    dataRef,
		ConsentRef: consentRef,
		CreatedAt:  w.clock.Now(),
	})
	if err != nil {
		return 0, fmt.Errorf("creating case: %w", err)
	}

	w.logger.Info("case created", "case_id", id, "patient", patient, "specialty", specialty, "urgency", urgency)
	return id, nil
}

// Case returns a copy of the case record. Fails with ErrUnknownCase.
func (w *CaseWorkflow) Case(caseID int64) (*model.Case, error) {
	c, err := w.store.GetCase(caseID)
	if err != nil {
		return nil, fmt.Errorf("loading case: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("case %d: %w", caseID, ErrUnknownCase)
	}
	return c, nil
}

// CasesByPatient returns the patient's cases in creation order.
func (w *CaseWorkflow) CasesByPatient(patient string) ([]*model.Case, error) {
	return w.store.ListCasesByPatient(patient)
}

// markAssigned commits Created -> Assigned. Cross-component guards
// (expert activity, specialty, reputation) belong to the coordinator; this
// enforces only the state machine.
func (w *CaseWorkflow) markAssigned(caseID, expertID int64) error {
	if err := w.store.MarkAssigned(caseID, expertID, w.clock.Now()); err != nil {
		return fmt.Errorf("assigning case %d: %w", caseID, err)
	}
	w.logger.Info("case assigned", "case_id", caseID, "expert_id", expertID)
	return nil
}

// recordDiagnosis commits Assigned -> DiagnosisSubmitted together with the
// expert's reputation write.
func (w *CaseWorkflow) recordDiagnosis(caseID int64, diagnosisRef model.Ref, expertID, newBase int64) error {
	if err := w.store.RecordDiagnosis(caseID, diagnosisRef, expertID, newBase, w.clock.Now()); err != nil {
		return fmt.Errorf("recording diagnosis for case %d: %w", caseID, err)
	}
	w.logger.Info("diagnosis recorded", "case_id", caseID, "expert_id", expertID)
	return nil
}

// close commits DiagnosisSubmitted -> Closed.
func (w *CaseWorkflow) close(caseID int64) error {
	if err := w.store.SetCaseStatus(caseID, model.CaseDiagnosisSubmitted, model.CaseClosed); err != nil {
		return fmt.Errorf("closing case %d: %w", caseID, err)
	}
	w.logger.Info("case closed", "case_id", caseID)
	return nil
}

// dispute commits DiagnosisSubmitted -> Disputed. Resolution is a governance
// concern outside this workflow; nothing transitions out of Disputed.
func (w *CaseWorkflow) dispute(caseID int64) error {
	if err := w.store.SetCaseStatus(caseID, model.CaseDiagnosisSubmitted, model.CaseDisputed); err != nil {
		return fmt.Errorf("disputing case %d: %w", caseID, err)
	}
	w.logger.Info("case disputed", "case_id", caseID)
	return nil
}

// idRef encodes a numeric record id as an audit reference.
func idRef(caseID int64) model.Ref {
	var r model.Ref
	binary.BigEndian.PutUint64(r[24:], uint64(caseID))
	return r
}
