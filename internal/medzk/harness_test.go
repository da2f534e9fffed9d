package medzk_test

import (
	"bytes"
	"testing"
	"time"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
	"medzk-go/internal/testutil"
)

const (
	govAddr     = "0xG0V0000000000000000000000000000000000001"
	patientAddr = "0xPAT0000000000000000000000000000000000001"
	doctorAddr  = "0xD0C0000000000000000000000000000000000001"
	expertAddr  = "0xEXP0000000000000000000000000000000000001"
	expert2Addr = "0xEXP0000000000000000000000000000000000002"
)

// stack wires the full component graph over an in-memory database, a
// scripted verifier, and a stub clock.
type stack struct {
	clock       *testutil.StubClock
	verifier    *testutil.StubVerifier
	audit       medzk.AuditLog
	content     medzk.ContentStore
	registry    *medzk.IdentityRegistry
	directory   *medzk.ExpertDirectory
	ledger      *medzk.ReputationLedger
	workflow    *medzk.CaseWorkflow
	coordinator *medzk.Coordinator
	policy      medzk.DecayPolicy
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db := testutil.NewTestDatabase(t)
	clock := testutil.FixedClock()
	logger := medzk.NewNopLogger()
	auditLog := testutil.NewTestAuditLog(clock)
	contentSt := testutil.NewTestContentStore(clock)
	pv := &testutil.StubVerifier{Accept: true}

	registry := medzk.NewIdentityRegistry(db, pv, auditLog, logger, clock)
	if err := registry.SeedGovernance([]string{govAddr}); err != nil {
		t.Fatalf("SeedGovernance() error = %v", err)
	}

	policy := medzk.DefaultDecayPolicy()
	directory := medzk.NewExpertDirectory(db, registry, logger, clock, policy.InitialScore)
	ledger := medzk.NewReputationLedger(db, directory, policy, logger, clock)
	workflow := medzk.NewCaseWorkflow(db, registry, logger, clock)
	coordinator := medzk.NewCoordinator(workflow, directory, ledger, registry, auditLog, contentSt, logger)

	return &stack{
		clock:       clock,
		verifier:    pv,
		audit:       auditLog,
		content:     contentSt,
		registry:    registry,
		directory:   directory,
		ledger:      ledger,
		workflow:    workflow,
		coordinator: coordinator,
		policy:      policy,
	}
}

func (s *stack) grantRole(t *testing.T, actor string, role model.Role) {
	t.Helper()
	if err := s.registry.GrantRole(govAddr, actor, role); err != nil {
		t.Fatalf("GrantRole(%s, %s) error = %v", actor, role, err)
	}
}

func (s *stack) registerExpert(t *testing.T, address string, specialty model.Specialty) *model.Expert {
	t.Helper()
	exp, err := s.coordinator.RegisterExpert(govAddr, address, specialty)
	if err != nil {
		t.Fatalf("RegisterExpert(%s) error = %v", address, err)
	}
	return exp
}

// createCase grants the Patient role, stores a payload, and opens a
// cardiology case for patientAddr.
func (s *stack) createCase(t *testing.T) int64 {
	t.Helper()
	s.grantRole(t, patientAddr, model.RolePatient)

	ref := dataRef(7)
	if err := s.content.Store(ref, bytes.NewReader([]byte("scan payload")), patientAddr, true, 0); err != nil {
		t.Fatalf("content Store() error = %v", err)
	}

	id, err := s.coordinator.CreateCase(patientAddr, ref, model.Ref{}, model.SpecialtyCardiology, model.UrgencyMedium)
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	return id
}

// assignedCase builds a case already assigned to a fresh cardiology expert.
func (s *stack) assignedCase(t *testing.T) (int64, *model.Expert) {
	t.Helper()
	id := s.createCase(t)
	exp := s.registerExpert(t, expertAddr, model.SpecialtyCardiology)
	s.grantRole(t, doctorAddr, model.RoleDoctor)
	if err := s.coordinator.AssignExpert(doctorAddr, id, exp.ID, s.policy.MinScore); err != nil {
		t.Fatalf("AssignExpert() error = %v", err)
	}
	return id, exp
}

// diagnosedCase builds a case in state DiagnosisSubmitted.
func (s *stack) diagnosedCase(t *testing.T) (int64, *model.Expert) {
	t.Helper()
	id, exp := s.assignedCase(t)
	if err := s.coordinator.SubmitDiagnosis(exp.Address, id, dataRef(9), model.Ref{}); err != nil {
		t.Fatalf("SubmitDiagnosis() error = %v", err)
	}
	return id, exp
}

func dataRef(fill byte) model.Ref {
	var r model.Ref
	for i := range r {
		r[i] = fill
	}
	return r
}

func advanceDays(s *stack, days int) {
	s.clock.Advance(time.Duration(days) * 24 * time.Hour)
}
