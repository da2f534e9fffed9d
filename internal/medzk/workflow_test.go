package medzk_test

import (
	"errors"
	"testing"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

func TestCreateCase(t *testing.T) {
	s := newStack(t)
	s.grantRole(t, patientAddr, model.RolePatient)

	id, err := s.workflow.CreateCase(patientAddr, dataRef(1), dataRef(2), model.SpecialtyNeurology, model.UrgencyHigh)
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	if id != 1 {
		t.Errorf("first case id = %d, want 1", id)
	}

	cs, err := s.workflow.Case(id)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if cs.Status != model.CaseCreated {
		t.Errorf("Status = %s, want created", cs.Status)
	}
	if cs.Patient != patientAddr {
		t.Errorf("Patient = %s, want %s", cs.Patient, patientAddr)
	}
	if cs.DataRef != dataRef(1) || cs.ConsentRef != dataRef(2) {
		t.Error("stored refs do not match submitted refs")
	}
	if cs.ExpertID != 0 {
		t.Errorf("ExpertID = %d before assignment, want 0", cs.ExpertID)
	}
}

func TestCreateCase_RequiresPatientRole(t *testing.T) {
	s := newStack(t)

	_, err := s.workflow.CreateCase(patientAddr, dataRef(1), model.Ref{}, model.SpecialtyCardiology, model.UrgencyLow)
	if !errors.Is(err, medzk.ErrNotPatient) {
		t.Fatalf("CreateCase() error = %v, want ErrNotPatient", err)
	}

	// A doctor without the patient role cannot open cases either.
	s.grantRole(t, doctorAddr, model.RoleDoctor)
	_, err = s.workflow.CreateCase(doctorAddr, dataRef(1), model.Ref{}, model.SpecialtyCardiology, model.UrgencyLow)
	if !errors.Is(err, medzk.ErrNotPatient) {
		t.Fatalf("CreateCase() as doctor error = %v, want ErrNotPatient", err)
	}
}

func TestCreateCase_Validation(t *testing.T) {
	s := newStack(t)
	s.grantRole(t, patientAddr, model.RolePatient)

	if _, err := s.workflow.CreateCase(patientAddr, dataRef(1), model.Ref{}, model.Specialty(9), model.UrgencyLow); !errors.Is(err, medzk.ErrInvalidSpecialty) {
		t.Errorf("bad specialty error = %v, want ErrInvalidSpecialty", err)
	}
	if _, err := s.workflow.CreateCase(patientAddr, dataRef(1), model.Ref{}, model.SpecialtyCardiology, model.Urgency(9)); !errors.Is(err, medzk.ErrInvalidUrgency) {
		t.Errorf("bad urgency error = %v, want ErrInvalidUrgency", err)
	}
	if _, err := s.workflow.CreateCase(patientAddr, model.Ref{}, model.Ref{}, model.SpecialtyCardiology, model.UrgencyLow); !errors.Is(err, medzk.ErrInvalidRef) {
		t.Errorf("zero data ref error = %v, want ErrInvalidRef", err)
	}
}

func TestCreateCase_ConsentOptional(t *testing.T) {
	s := newStack(t)
	s.grantRole(t, patientAddr, model.RolePatient)

	id, err := s.workflow.CreateCase(patientAddr, dataRef(1), model.Ref{}, model.SpecialtyCardiology, model.UrgencyLow)
	if err != nil {
		t.Fatalf("CreateCase() without consent error = %v", err)
	}

	cs, err := s.workflow.Case(id)
	if err != nil {
		t.Fatalf("Case() error = %v", err)
	}
	if !cs.ConsentRef.IsZero() {
		t.Errorf("ConsentRef = %x, want zero", cs.ConsentRef)
	}
}

func TestCase_Unknown(t *testing.T) {
	s := newStack(t)

	_, err := s.workflow.Case(42)
	if !errors.Is(err, medzk.ErrUnknownCase) {
		t.Fatalf("Case() error = %v, want ErrUnknownCase", err)
	}
}

func TestCasesByPatient(t *testing.T) {
	s := newStack(t)
	s.grantRole(t, patientAddr, model.RolePatient)
	s.grantRole(t, doctorAddr, model.RolePatient)

	var want []int64
	for i := 0; i < 3; i++ {
		id, err := s.workflow.CreateCase(patientAddr, dataRef(byte(i+1)), model.Ref{}, model.SpecialtyCardiology, model.UrgencyLow)
		if err != nil {
			t.Fatalf("CreateCase() error = %v", err)
		}
		want = append(want, id)
	}
	if _, err := s.workflow.CreateCase(doctorAddr, dataRef(9), model.Ref{}, model.SpecialtyOncology, model.UrgencyLow); err != nil {
		t.Fatalf("CreateCase() for other patient error = %v", err)
	}

	cases, err := s.workflow.CasesByPatient(patientAddr)
	if err != nil {
		t.Fatalf("CasesByPatient() error = %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("len(cases) = %d, want 3", len(cases))
	}
	for i, cs := range cases {
		if cs.ID != want[i] {
			t.Errorf("cases[%d].ID = %d, want %d", i, cs.ID, want[i])
		}
	}
}
