package app

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"time"

	"medzk-go/internal/audit"
	"medzk-go/internal/config"
	"medzk-go/internal/content"
	"medzk-go/internal/database"
	"medzk-go/internal/encryption"
	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
	"medzk-go/internal/verifier"
)

// App is the application layer between the CLI and the core components.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw string arguments, and manages the DB lifecycle on Close.
type App struct {
	cfg         *config.Config
	db          *database.SQLiteDatabase
	contentSt   medzk.ContentStore
	auditLog    medzk.AuditLog
	encryptor   medzk.Encryptor
	registry    *medzk.IdentityRegistry
	directory   *medzk.ExpertDirectory
	ledger      *medzk.ReputationLedger
	workflow    *medzk.CaseWorkflow
	coordinator *medzk.Coordinator
	logFile     *os.File
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "CaseCreate", "ExpertRegister").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// An in-memory database starts empty on every run; a file-backed one
	// must already be at the expected schema version.
	if cfg.Database.Type == "memory" {
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	} else if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	policy, err := policyFromConfig(cfg.Reputation)
	if err != nil {
		db.Close()
		return nil, err
	}

	pv, err := verifier.NewVerifierFromConfig(cfg.Verifier)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating verifier: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clock := medzk.RealClock{}

	cs, err := content.NewContentStoreFromConfig(cfg.Content, enc, clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating content store: %w", err)
	}

	al, err := audit.NewAuditLogFromConfig(cfg.Audit, db.DB(), clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating audit log: %w", err)
	}

	var ids medzk.IDGenerator = medzk.UUIDGenerator{}
	opID := operation + "-" + ids.New()[:8]
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	registry := medzk.NewIdentityRegistry(db, pv, al, logger, clock)
	if err := registry.SeedGovernance(cfg.Governance.Admins); err != nil {
		logFile.Close()
		db.Close()
		return nil, fmt.Errorf("seeding governance: %w", err)
	}

	directory := medzk.NewExpertDirectory(db, registry, logger, clock, policy.InitialScore)
	ledger := medzk.NewReputationLedger(db, directory, policy, logger, clock)
	workflow := medzk.NewCaseWorkflow(db, registry, logger, clock)
	coordinator := medzk.NewCoordinator(workflow, directory, ledger, registry, al, cs, logger)

	return &App{
		cfg:         cfg,
		db:          db,
		contentSt:   cs,
		auditLog:    al,
		encryptor:   enc,
		registry:    registry,
		directory:   directory,
		ledger:      ledger,
		workflow:    workflow,
		coordinator: coordinator,
		logFile:     logFile,
	}, nil
}

// policyFromConfig maps the reputation config onto a DecayPolicy. Absent
// fields fall back to the deployed defaults; explicit zeros are honored.
func policyFromConfig(cfg config.ReputationConfig) (medzk.DecayPolicy, error) {
	p := medzk.DefaultDecayPolicy()
	if cfg.InitialScore != nil {
		p.InitialScore = *cfg.InitialScore
	}
	if cfg.MinScore != nil {
		p.MinScore = *cfg.MinScore
	}
	if cfg.DiagnosisReward != nil {
		p.DiagnosisReward = *cfg.DiagnosisReward
	}
	if cfg.DecayRate != nil {
		p.Rate = *cfg.DecayRate
	}
	if cfg.DecayPeriodDays != nil {
		p.Period = time.Duration(*cfg.DecayPeriodDays) * 24 * time.Hour
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("reputation config: %w", err)
	}
	return p, nil
}

// InitKeys generates the sealing key pair, encrypting the private key with
// the passphrase.
func (a *App) InitKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// RegisterIdentity reads a proof file and registers the claimed role for actor.
func (a *App) RegisterIdentity(actor, proofPath, nullifierHash string) error {
	proof, inputs, err := LoadProofFile(proofPath)
	if err != nil {
		return err
	}
	return a.registry.Register(actor, proof, inputs, nullifierHash, nil)
}

// Identity returns the verified roles held by actor. An actor that has
// never been granted a role yields an empty identity, not nil.
func (a *App) Identity(actor string) (*model.Identity, error) {
	id, err := a.registry.Identity(actor)
	if err != nil {
		return nil, err
	}
	if id == nil {
		id = &model.Identity{Actor: actor}
	}
	return id, nil
}

// GrantRole grants a role administratively on behalf of caller.
func (a *App) GrantRole(caller, actor, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	return a.registry.GrantRole(caller, actor, role)
}

// RevokeRole removes a role on behalf of caller.
func (a *App) RevokeRole(caller, actor, roleName string) error {
	role, err := ParseRole(roleName)
	if err != nil {
		return err
	}
	return a.registry.RevokeRole(caller, actor, role)
}

// RegisterExpert enrolls a specialist in the directory.
func (a *App) RegisterExpert(caller, address, specialtyName string) (*model.Expert, error) {
	specialty, err := ParseSpecialty(specialtyName)
	if err != nil {
		return nil, err
	}
	return a.coordinator.RegisterExpert(caller, address, specialty)
}

// Expert returns a directory record by id.
func (a *App) Expert(expertID int64) (*model.Expert, error) {
	return a.directory.Expert(expertID)
}

// ListExperts returns the directory records for a specialty in enrollment order.
func (a *App) ListExperts(specialtyName string) ([]*model.Expert, error) {
	specialty, err := ParseSpecialty(specialtyName)
	if err != nil {
		return nil, err
	}
	ids, err := a.directory.ExpertsBySpecialty(specialty)
	if err != nil {
		return nil, err
	}
	experts := make([]*model.Expert, 0, len(ids))
	for _, id := range ids {
		exp, err := a.directory.Expert(id)
		if err != nil {
			return nil, err
		}
		experts = append(experts, exp)
	}
	return experts, nil
}

// SetExpertStatus activates or deactivates an expert.
func (a *App) SetExpertStatus(caller string, expertID int64, active bool) error {
	return a.directory.SetExpertStatus(caller, expertID, active)
}

// UpdateSpecialty moves an expert to a different specialty.
func (a *App) UpdateSpecialty(caller string, expertID int64, specialtyName string) error {
	specialty, err := ParseSpecialty(specialtyName)
	if err != nil {
		return err
	}
	return a.directory.UpdateSpecialty(caller, expertID, specialty)
}

// Reputation returns an expert's current decay-adjusted score.
func (a *App) Reputation(expertID int64) (int64, error) {
	return a.ledger.GetReputation(expertID)
}

// CreateCase seals the payload at dataPath into the content store under its
// digest and opens a case referencing it. consentPath is optional. expiry of
// zero means the payload never expires.
func (a *App) CreateCase(patient, dataPath, consentPath, specialtyName, urgencyName string, expiry time.Duration) (int64, error) {
	specialty, err := ParseSpecialty(specialtyName)
	if err != nil {
		return 0, err
	}
	urgency, err := ParseUrgency(urgencyName)
	if err != nil {
		return 0, err
	}

	dataRef, err := a.storeFile(dataPath, patient, true, expiry)
	if err != nil {
		return 0, err
	}

	var consentRef model.Ref
	if consentPath != "" {
		if consentRef, err = a.storeFile(consentPath, patient, true, expiry); err != nil {
			return 0, err
		}
	}

	return a.coordinator.CreateCase(patient, dataRef, consentRef, specialty, urgency)
}

// AssignExpert assigns the given expert to a case. When expertID is 0 the
// highest-scoring qualified expert in the case's specialty is selected. A
// negative minReputation falls back to the configured score floor.
func (a *App) AssignExpert(caller string, caseID, expertID, minReputation int64) (int64, error) {
	if minReputation < 0 {
		minReputation = a.ledger.Policy().MinScore
	}
	if expertID == 0 {
		var err error
		if expertID, err = a.coordinator.SelectExpert(caseID, minReputation); err != nil {
			return 0, err
		}
	}
	if err := a.coordinator.AssignExpert(caller, caseID, expertID, minReputation); err != nil {
		return 0, err
	}
	return expertID, nil
}

// SubmitDiagnosis seals the diagnosis file into the content store and
// records it against the case. proofPath is optional supporting evidence.
func (a *App) SubmitDiagnosis(caller string, caseID int64, diagnosisPath, proofPath string) error {
	diagnosisRef, err := a.storeFile(diagnosisPath, caller, true, 0)
	if err != nil {
		return err
	}

	var proofRef model.Ref
	if proofPath != "" {
		if proofRef, err = a.storeFile(proofPath, caller, true, 0); err != nil {
			return err
		}
	}

	return a.coordinator.SubmitDiagnosis(caller, caseID, diagnosisRef, proofRef)
}

// CloseCase closes a diagnosed case.
func (a *App) CloseCase(caller string, caseID int64) error {
	return a.coordinator.CloseCase(caller, caseID)
}

// DisputeCase flags a diagnosed case for governance review.
func (a *App) DisputeCase(caller string, caseID int64) error {
	return a.coordinator.DisputeCase(caller, caseID)
}

// Case returns a case record by id.
func (a *App) Case(caseID int64) (*model.Case, error) {
	return a.workflow.Case(caseID)
}

// CasesByPatient returns all cases opened by a patient in creation order.
func (a *App) CasesByPatient(patient string) ([]*model.Case, error) {
	return a.workflow.CasesByPatient(patient)
}

// FetchCaseData streams a case's payload to w, enforcing the caller's
// content grant. With a non-empty passphrase the sealed payload is
// decrypted; otherwise it is streamed sealed.
func (a *App) FetchCaseData(caller string, caseID int64, passphrase string, w io.Writer) error {
	cs, err := a.workflow.Case(caseID)
	if err != nil {
		return err
	}

	if passphrase == "" {
		return a.contentSt.Open(cs.DataRef, caller, w)
	}

	var sealed bytes.Buffer
	if err := a.contentSt.Open(cs.DataRef, caller, &sealed); err != nil {
		return err
	}

	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking key: %w", err)
	}
	return dec.Decrypt(&sealed, w)
}

// AuditByActor returns all audit entries recorded for an actor.
func (a *App) AuditByActor(actor string) ([]*model.AuditEntry, error) {
	return a.auditLog.ByActor(actor)
}

// AuditTotal returns the number of audit entries recorded so far.
func (a *App) AuditTotal() (int64, error) {
	return a.auditLog.Total()
}

// storeFile reads path, derives its digest ref, and seals it into the
// content store under the owner's write access.
func (a *App) storeFile(path, owner string, encrypted bool, expiry time.Duration) (model.Ref, error) {
	var ref model.Ref

	f, err := os.Open(path)
	if err != nil {
		return ref, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	var buf bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(h, &buf), f); err != nil {
		return ref, fmt.Errorf("reading %s: %w", path, err)
	}
	copy(ref[:], h.Sum(nil))

	if err := a.contentSt.Store(ref, &buf, owner, encrypted, expiry); err != nil {
		return ref, fmt.Errorf("storing %s: %w", path, err)
	}
	return ref, nil
}

// Close closes all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
