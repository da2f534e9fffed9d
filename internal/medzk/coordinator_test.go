package medzk_test

import (
	"bytes"
	"errors"
	"testing"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

func TestConsultationHappyPath(t *testing.T) {
	s := newStack(t)

	caseID := s.createCase(t)
	exp := s.registerExpert(t, expertAddr, model.SpecialtyCardiology)
	s.grantRole(t, doctorAddr, model.RoleDoctor)

	if err := s.coordinator.AssignExpert(doctorAddr, caseID, exp.ID, s.policy.MinScore); err != nil {
		t.Fatalf("AssignExpert() error = %v", err)
	}

	cs, err := s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != model.CaseAssigned {
		t.Fatalf("Status = %s after assignment, want assigned", cs.Status)
	}
	if cs.ExpertID != exp.ID {
		t.Fatalf("ExpertID = %d, want %d", cs.ExpertID, exp.ID)
	}

	diagRef := dataRef(9)
	if err := s.coordinator.SubmitDiagnosis(exp.Address, caseID, diagRef, model.Ref{}); err != nil {
		t.Fatalf("SubmitDiagnosis() error = %v", err)
	}

	cs, err = s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != model.CaseDiagnosisSubmitted {
		t.Fatalf("Status = %s after diagnosis, want diagnosis-submitted", cs.Status)
	}
	if cs.DiagnosisRef != diagRef {
		t.Error("diagnosis ref not recorded")
	}

	// The diagnosis reward landed in the same commit.
	score, err := s.ledger.GetReputation(exp.ID)
	if err != nil {
		t.Fatalf("GetReputation() error = %v", err)
	}
	if want := s.policy.InitialScore + s.policy.DiagnosisReward; score != want {
		t.Errorf("score = %d after diagnosis, want %d", score, want)
	}

	if err := s.coordinator.CloseCase(patientAddr, caseID); err != nil {
		t.Fatalf("CloseCase() error = %v", err)
	}
	cs, err = s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != model.CaseClosed {
		t.Errorf("Status = %s, want closed", cs.Status)
	}
}

func TestDisputePath(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.diagnosedCase(t)

	// Only the patient may dispute.
	if err := s.coordinator.DisputeCase(exp.Address, caseID); !errors.Is(err, medzk.ErrNotCaseParticipant) {
		t.Fatalf("DisputeCase() as expert error = %v, want ErrNotCaseParticipant", err)
	}
	if err := s.coordinator.DisputeCase(govAddr, caseID); !errors.Is(err, medzk.ErrNotCaseParticipant) {
		t.Fatalf("DisputeCase() as governance error = %v, want ErrNotCaseParticipant", err)
	}

	if err := s.coordinator.DisputeCase(patientAddr, caseID); err != nil {
		t.Fatalf("DisputeCase() error = %v", err)
	}

	cs, err := s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != model.CaseDisputed {
		t.Fatalf("Status = %s, want disputed", cs.Status)
	}

	// Disputed is terminal: a later close must not land.
	if err := s.coordinator.CloseCase(patientAddr, caseID); !errors.Is(err, medzk.ErrInvalidTransition) {
		t.Errorf("CloseCase() on disputed case error = %v, want ErrInvalidTransition", err)
	}
}

func TestAssignExpert_CallerGating(t *testing.T) {
	s := newStack(t)
	caseID := s.createCase(t)
	exp := s.registerExpert(t, expertAddr, model.SpecialtyCardiology)

	// The patient cannot assign.
	err := s.coordinator.AssignExpert(patientAddr, caseID, exp.ID, s.policy.MinScore)
	if !errors.Is(err, medzk.ErrNotDoctor) {
		t.Fatalf("AssignExpert() as patient error = %v, want ErrNotDoctor", err)
	}

	// Governance can.
	if err := s.coordinator.AssignExpert(govAddr, caseID, exp.ID, s.policy.MinScore); err != nil {
		t.Fatalf("AssignExpert() as governance error = %v", err)
	}
}

func TestAssignExpert_Guards(t *testing.T) {
	s := newStack(t)
	s.grantRole(t, doctorAddr, model.RoleDoctor)

	t.Run("unknown case", func(t *testing.T) {
		exp := s.registerExpert(t, "0xGUARD1", model.SpecialtyCardiology)
		err := s.coordinator.AssignExpert(doctorAddr, 999, exp.ID, s.policy.MinScore)
		if !errors.Is(err, medzk.ErrUnknownCase) {
			t.Errorf("error = %v, want ErrUnknownCase", err)
		}
	})

	t.Run("unknown expert", func(t *testing.T) {
		caseID := s.createCase(t)
		err := s.coordinator.AssignExpert(doctorAddr, caseID, 999, s.policy.MinScore)
		if !errors.Is(err, medzk.ErrUnknownExpert) {
			t.Errorf("error = %v, want ErrUnknownExpert", err)
		}
		assertStatus(t, s, caseID, model.CaseCreated)
	})

	t.Run("inactive expert", func(t *testing.T) {
		caseID := s.createCase(t)
		exp := s.registerExpert(t, "0xGUARD2", model.SpecialtyCardiology)
		if err := s.directory.SetExpertStatus(govAddr, exp.ID, false); err != nil {
			t.Fatalf("SetExpertStatus() error = %v", err)
		}
		err := s.coordinator.AssignExpert(doctorAddr, caseID, exp.ID, s.policy.MinScore)
		if !errors.Is(err, medzk.ErrExpertInactive) {
			t.Errorf("error = %v, want ErrExpertInactive", err)
		}
		assertStatus(t, s, caseID, model.CaseCreated)
	})

	t.Run("specialty mismatch", func(t *testing.T) {
		caseID := s.createCase(t)
		exp := s.registerExpert(t, "0xGUARD3", model.SpecialtyRadiology)
		err := s.coordinator.AssignExpert(doctorAddr, caseID, exp.ID, s.policy.MinScore)
		if !errors.Is(err, medzk.ErrSpecialtyMismatch) {
			t.Errorf("error = %v, want ErrSpecialtyMismatch", err)
		}
		assertStatus(t, s, caseID, model.CaseCreated)
	})

	t.Run("reputation below threshold", func(t *testing.T) {
		caseID := s.createCase(t)
		exp := s.registerExpert(t, "0xGUARD4", model.SpecialtyCardiology)
		err := s.coordinator.AssignExpert(doctorAddr, caseID, exp.ID, s.policy.InitialScore+1)
		if !errors.Is(err, medzk.ErrReputationTooLow) {
			t.Errorf("error = %v, want ErrReputationTooLow", err)
		}
		assertStatus(t, s, caseID, model.CaseCreated)
	})
}

func TestAssignExpert_OnlyFromCreated(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.assignedCase(t)

	err := s.coordinator.AssignExpert(doctorAddr, caseID, exp.ID, s.policy.MinScore)
	if !errors.Is(err, medzk.ErrInvalidTransition) {
		t.Fatalf("reassignment error = %v, want ErrInvalidTransition", err)
	}
}

func TestAssignExpert_GrantsPayloadAccess(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.assignedCase(t)

	cs, err := s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}

	var out bytes.Buffer
	if err := s.content.Open(cs.DataRef, exp.Address, &out); err != nil {
		t.Fatalf("assigned expert cannot open payload: %v", err)
	}

	// Unrelated principals still cannot.
	if err := s.content.Open(cs.DataRef, doctorAddr, &out); !errors.Is(err, medzk.ErrAccessDenied) {
		t.Errorf("Open() by doctor error = %v, want ErrAccessDenied", err)
	}
}

func TestSelectExpert(t *testing.T) {
	s := newStack(t)
	caseID := s.createCase(t)

	a := s.registerExpert(t, expertAddr, model.SpecialtyCardiology)
	b := s.registerExpert(t, expert2Addr, model.SpecialtyCardiology)
	s.registerExpert(t, "0xOTHER", model.SpecialtyNeurology)

	// Lift b above a.
	if _, err := s.ledger.ApplyDelta(b.ID, 50); err != nil {
		t.Fatalf("ApplyDelta() error = %v", err)
	}

	got, err := s.coordinator.SelectExpert(caseID, s.policy.MinScore)
	if err != nil {
		t.Fatalf("SelectExpert() error = %v", err)
	}
	if got != b.ID {
		t.Errorf("SelectExpert() = %d, want %d", got, b.ID)
	}

	// Deactivate b; selection falls back to a.
	if err := s.directory.SetExpertStatus(govAddr, b.ID, false); err != nil {
		t.Fatalf("SetExpertStatus() error = %v", err)
	}
	got, err = s.coordinator.SelectExpert(caseID, s.policy.MinScore)
	if err != nil {
		t.Fatalf("SelectExpert() error = %v", err)
	}
	if got != a.ID {
		t.Errorf("SelectExpert() = %d, want %d", got, a.ID)
	}
}

func TestSelectExpert_TiesKeepBucketOrder(t *testing.T) {
	s := newStack(t)
	caseID := s.createCase(t)

	a := s.registerExpert(t, expertAddr, model.SpecialtyCardiology)
	s.registerExpert(t, expert2Addr, model.SpecialtyCardiology)

	got, err := s.coordinator.SelectExpert(caseID, s.policy.MinScore)
	if err != nil {
		t.Fatalf("SelectExpert() error = %v", err)
	}
	if got != a.ID {
		t.Errorf("SelectExpert() = %d, want first enrolled %d", got, a.ID)
	}
}

func TestSelectExpert_NoneQualified(t *testing.T) {
	s := newStack(t)
	caseID := s.createCase(t)

	// Wrong specialty only.
	s.registerExpert(t, expertAddr, model.SpecialtyNeurology)

	_, err := s.coordinator.SelectExpert(caseID, s.policy.MinScore)
	if !errors.Is(err, medzk.ErrNoQualifiedExpert) {
		t.Fatalf("SelectExpert() error = %v, want ErrNoQualifiedExpert", err)
	}

	// A threshold above everyone also empties the pool.
	s.registerExpert(t, expert2Addr, model.SpecialtyCardiology)
	_, err = s.coordinator.SelectExpert(caseID, s.policy.InitialScore+1)
	if !errors.Is(err, medzk.ErrNoQualifiedExpert) {
		t.Fatalf("SelectExpert() with high threshold error = %v, want ErrNoQualifiedExpert", err)
	}
}

func TestSubmitDiagnosis_OnlyAssignedExpert(t *testing.T) {
	s := newStack(t)
	caseID, _ := s.assignedCase(t)
	other := s.registerExpert(t, expert2Addr, model.SpecialtyCardiology)

	err := s.coordinator.SubmitDiagnosis(other.Address, caseID, dataRef(9), model.Ref{})
	if !errors.Is(err, medzk.ErrNotAssignedExpert) {
		t.Fatalf("SubmitDiagnosis() by other expert error = %v, want ErrNotAssignedExpert", err)
	}
	assertStatus(t, s, caseID, model.CaseAssigned)
}

func TestSubmitDiagnosis_CallerAddressCaseInsensitive(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.assignedCase(t)

	lower := make([]byte, len(exp.Address))
	for i := 0; i < len(exp.Address); i++ {
		c := exp.Address[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		lower[i] = c
	}

	if err := s.coordinator.SubmitDiagnosis(string(lower), caseID, dataRef(9), model.Ref{}); err != nil {
		t.Fatalf("SubmitDiagnosis() with lowercased address error = %v", err)
	}
}

func TestSubmitDiagnosis_Guards(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.assignedCase(t)

	if err := s.coordinator.SubmitDiagnosis(exp.Address, caseID, model.Ref{}, model.Ref{}); !errors.Is(err, medzk.ErrInvalidRef) {
		t.Errorf("zero diagnosis ref error = %v, want ErrInvalidRef", err)
	}
	if err := s.coordinator.SubmitDiagnosis(exp.Address, 999, dataRef(9), model.Ref{}); !errors.Is(err, medzk.ErrUnknownCase) {
		t.Errorf("unknown case error = %v, want ErrUnknownCase", err)
	}

	// A second submission finds the case out of Assigned.
	if err := s.coordinator.SubmitDiagnosis(exp.Address, caseID, dataRef(9), model.Ref{}); err != nil {
		t.Fatalf("first SubmitDiagnosis() error = %v", err)
	}
	err := s.coordinator.SubmitDiagnosis(exp.Address, caseID, dataRef(10), model.Ref{})
	if !errors.Is(err, medzk.ErrInvalidTransition) {
		t.Errorf("second submission error = %v, want ErrInvalidTransition", err)
	}

	// The reward was paid exactly once.
	score, err := s.ledger.GetReputation(exp.ID)
	if err != nil {
		t.Fatalf("GetReputation() error = %v", err)
	}
	if want := s.policy.InitialScore + s.policy.DiagnosisReward; score != want {
		t.Errorf("score = %d, want %d", score, want)
	}
}

func TestCloseCase_Participants(t *testing.T) {
	s := newStack(t)
	caseID, exp := s.diagnosedCase(t)

	if err := s.coordinator.CloseCase(exp.Address, caseID); !errors.Is(err, medzk.ErrNotCaseParticipant) {
		t.Fatalf("CloseCase() by expert error = %v, want ErrNotCaseParticipant", err)
	}

	// Governance may close on the patient's behalf.
	if err := s.coordinator.CloseCase(govAddr, caseID); err != nil {
		t.Fatalf("CloseCase() by governance error = %v", err)
	}
	assertStatus(t, s, caseID, model.CaseClosed)

	// Closed is terminal.
	if err := s.coordinator.DisputeCase(patientAddr, caseID); !errors.Is(err, medzk.ErrInvalidTransition) {
		t.Errorf("DisputeCase() on closed case error = %v, want ErrInvalidTransition", err)
	}
}

func TestCloseCase_OnlyFromDiagnosisSubmitted(t *testing.T) {
	s := newStack(t)
	caseID := s.createCase(t)

	if err := s.coordinator.CloseCase(patientAddr, caseID); !errors.Is(err, medzk.ErrInvalidTransition) {
		t.Fatalf("CloseCase() on created case error = %v, want ErrInvalidTransition", err)
	}
}

func TestWorkflowAuditTrail(t *testing.T) {
	s := newStack(t)

	before, err := s.audit.Total()
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}

	caseID, _ := s.diagnosedCase(t)
	if err := s.coordinator.CloseCase(patientAddr, caseID); err != nil {
		t.Fatalf("CloseCase() error = %v", err)
	}

	// create + expert-registered + assigned + diagnosis + closed.
	after, err := s.audit.Total()
	if err != nil {
		t.Fatalf("Total() error = %v", err)
	}
	if after-before != 5 {
		t.Errorf("audit delta = %d, want 5", after-before)
	}

	entries, err := s.audit.ByActor(patientAddr)
	if err != nil {
		t.Fatalf("ByActor() error = %v", err)
	}
	kinds := make([]model.EventKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	want := []model.EventKind{model.EventCaseCreated, model.EventCaseClosed}
	if len(kinds) != len(want) {
		t.Fatalf("patient events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("patient events = %v, want %v", kinds, want)
			break
		}
	}
}

func assertStatus(t *testing.T, s *stack, caseID int64, want model.CaseStatus) {
	t.Helper()
	cs, err := s.workflow.Case(caseID)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != want {
		t.Fatalf("Status = %s, want %s", cs.Status, want)
	}
}
