package medzk

import (
	"fmt"
	"strings"

	"medzk-go/internal/model"
)

// Coordinator orchestrates expert assignment and diagnosis submission across
// the workflow, the directory, and the reputation ledger. It is the only
// write path into the ledger from the workflow side, and it holds the audit
// and content-grant capabilities.
type Coordinator struct {
	workflow  *CaseWorkflow
	directory *ExpertDirectory
	ledger    *ReputationLedger
	authz     Authorizer
	audit     AuditLog
	content   ContentStore
	logger    Logger
}

func NewCoordinator(workflow *CaseWorkflow, directory *ExpertDirectory, ledger *ReputationLedger, authz Authorizer, audit AuditLog, content ContentStore, logger Logger) *Coordinator {
	return &Coordinator{
		workflow:  workflow,
		directory: directory,
		ledger:    ledger,
		authz:     authz,
		audit:     audit,
		content:   content,
		logger:    logger,
	}
}

// CreateCase opens a case on behalf of a patient and emits the audit event.
func (c *Coordinator) CreateCase(patient string, dataRef, consentRef model.Ref, specialty model.Specialty, urgency model.Urgency) (int64, error) {
	id, err := c.workflow.CreateCase(patient, dataRef, consentRef, specialty, urgency)
	if err != nil {
		return 0, err
	}
	c.appendAudit(model.EventCaseCreated, patient, idRef(id))
	return id, nil
}

// RegisterExpert enrolls a specialist through the directory and emits the
// audit event for the enrollment.
func (c *Coordinator) RegisterExpert(caller, address string, specialty model.Specialty) (*model.Expert, error) {
	exp, err := c.directory.RegisterExpert(caller, address, specialty)
	if err != nil {
		return nil, err
	}
	c.appendAudit(model.EventExpertRegistered, exp.Address, idRef(exp.ID))
	return exp, nil
}

// AssignExpert assigns an expert to a case. The caller must hold the Doctor
// or Governance role. Guards run in order: case state, expert existence and
// activity, specialty match, reputation threshold; a failed guard leaves the
// case in Created. On success the expert's address is granted read access to
// the case payload (fire-and-forget bookkeeping, failures are logged).
func (c *Coordinator) AssignExpert(caller string, caseID, expertID int64, minReputation int64) error {
	isDoctor, err := c.authz.HasRole(caller, model.RoleDoctor)
	if err != nil {
		return err
	}
	isGov, err := c.authz.HasRole(caller, model.RoleGovernance)
	if err != nil {
		return err
	}
	if !isDoctor && !isGov {
		return ErrNotDoctor
	}

	cs, err := c.workflow.Case(caseID)
	if err != nil {
		return err
	}
	if cs.Status != model.CaseCreated {
		return fmt.Errorf("case %d is %s: %w", caseID, cs.Status, ErrInvalidTransition)
	}

	exp, err := c.directory.Expert(expertID)
	if err != nil {
		return err
	}
	if !exp.Active {
		return fmt.Errorf("expert %d: %w", expertID, ErrExpertInactive)
	}
	if exp.Specialty != cs.Specialty {
		return fmt.Errorf("expert is %s, case needs %s: %w", exp.Specialty, cs.Specialty, ErrSpecialtyMismatch)
	}

	score, err := c.ledger.GetReputation(expertID)
	if err != nil {
		return err
	}
	if score < minReputation {
		return fmt.Errorf("score %d below %d: %w", score, minReputation, ErrReputationTooLow)
	}

	if err := c.workflow.markAssigned(caseID, expertID); err != nil {
		return err
	}

	c.appendAudit(model.EventCaseAssigned, exp.Address, idRef(caseID))

	if err := c.content.Grant(cs.DataRef, exp.Address, AccessRead); err != nil {
		// Grant bookkeeping is advisory; the assignment already committed.
		c.logger.Warn("content grant failed", "case_id", caseID, "grantee", exp.Address, "error", err)
	}
	return nil
}

// SelectExpert picks the active expert in the case's specialty with the
// highest current score at or above minReputation, or ErrNoQualifiedExpert
// when the bucket holds none. Ties keep bucket order.
func (c *Coordinator) SelectExpert(caseID int64, minReputation int64) (int64, error) {
	cs, err := c.workflow.Case(caseID)
	if err != nil {
		return 0, err
	}

	ids, err := c.directory.ExpertsBySpecialty(cs.Specialty)
	if err != nil {
		return 0, err
	}

	var bestID int64
	var bestScore int64 = -1
	for _, id := range ids {
		active, err := c.directory.IsActiveExpert(id)
		if err != nil {
			return 0, err
		}
		if !active {
			continue
		}
		score, err := c.ledger.GetReputation(id)
		if err != nil {
			return 0, err
		}
		if score >= minReputation && score > bestScore {
			bestID, bestScore = id, score
		}
	}
	if bestID == 0 {
		return 0, fmt.Errorf("specialty %s, min %d: %w", cs.Specialty, minReputation, ErrNoQualifiedExpert)
	}
	return bestID, nil
}

// SubmitDiagnosis records the assigned expert's diagnosis. The caller's
// address must resolve to the case's assigned expert. The case transition
// and the fixed reputation reward commit in one atomic unit; the audit event
// follows the commit.
func (c *Coordinator) SubmitDiagnosis(caller string, caseID int64, diagnosisRef, proofRef model.Ref) error {
	if diagnosisRef.IsZero() {
		return fmt.Errorf("diagnosis reference required: %w", ErrInvalidRef)
	}

	cs, err := c.workflow.Case(caseID)
	if err != nil {
		return err
	}
	if cs.Status != model.CaseAssigned {
		return fmt.Errorf("case %d is %s: %w", caseID, cs.Status, ErrInvalidTransition)
	}

	exp, err := c.directory.Expert(cs.ExpertID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(exp.Address, caller) {
		return ErrNotAssignedExpert
	}

	reward := c.ledger.Policy().DiagnosisReward
	newBase, err := c.ledger.NextBase(cs.ExpertID, reward)
	if err != nil {
		return err
	}

	if err := c.workflow.recordDiagnosis(caseID, diagnosisRef, cs.ExpertID, newBase); err != nil {
		return err
	}

	c.appendAudit(model.EventDiagnosisSubmitted, caller, diagnosisRef)
	c.logger.Debug("diagnosis proof recorded", "case_id", caseID, "proof_zero", proofRef.IsZero())
	return nil
}

// CloseCase closes a diagnosed case. Allowed for the case patient or a
// Governance principal.
func (c *Coordinator) CloseCase(caller string, caseID int64) error {
	cs, err := c.workflow.Case(caseID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(cs.Patient, caller) {
		isGov, err := c.authz.HasRole(caller, model.RoleGovernance)
		if err != nil {
			return err
		}
		if !isGov {
			return ErrNotCaseParticipant
		}
	}
	if err := c.workflow.close(caseID); err != nil {
		return err
	}
	c.appendAudit(model.EventCaseClosed, caller, idRef(caseID))
	return nil
}

// DisputeCase flags a diagnosed case for governance review. Only the case
// patient may dispute.
func (c *Coordinator) DisputeCase(caller string, caseID int64) error {
	cs, err := c.workflow.Case(caseID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(cs.Patient, caller) {
		return ErrNotCaseParticipant
	}
	if err := c.workflow.dispute(caseID); err != nil {
		return err
	}
	c.appendAudit(model.EventCaseDisputed, caller, idRef(caseID))
	return nil
}

// appendAudit is best-effort: the state commit already happened and the log
// is never read back by the core.
func (c *Coordinator) appendAudit(kind model.EventKind, actor string, ref model.Ref) {
	if _, err := c.audit.Append(kind, actor, ref); err != nil {
		c.logger.Warn("audit append failed", "event", kind, "actor", actor, "error", err)
	}
}
