package main

import (
	"fmt"
	"os"
	"time"

	"medzk-go/internal/app"
	"medzk-go/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "CaseCreate", "ExpertRegister").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// actingPrincipal returns the address behind the global --as flag.
// Every command that writes state needs one.
func actingPrincipal(cmd *cobra.Command) (string, error) {
	actor, _ := cmd.Flags().GetString("as")
	if actor == "" {
		return "", fmt.Errorf("an acting address is required: pass --as ADDRESS")
	}
	return actor, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string, confirm bool) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		again, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(pass) != string(again) {
			return "", fmt.Errorf("passphrases do not match")
		}
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "medzk",
	Short: "Proof-gated medical consultation workflow",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Verifier:  %s\n", cfg.Verifier.Type)
		fmt.Printf("Content:   %s\n", cfg.Content.Type)
		fmt.Printf("Audit:     %s\n", cfg.Audit.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage sealing keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the sealing key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("KeysInit")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase for the private key: ", true)
		if err != nil {
			return err
		}

		if err := a.InitKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Sealing key pair generated.")
		return nil
	},
}

// identity command
var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Manage verified identities",
}

var identityRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a role from a zero-knowledge proof",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		proofPath, _ := cmd.Flags().GetString("proof")
		nullifier, _ := cmd.Flags().GetString("nullifier")
		if proofPath == "" || nullifier == "" {
			return fmt.Errorf("both --proof and --nullifier are required")
		}

		a, err := newApp("IdentityRegister")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RegisterIdentity(actor, proofPath, nullifier); err != nil {
			return fmt.Errorf("registering identity: %w", err)
		}

		fmt.Printf("Role registered for %s\n", actor)
		return nil
	},
}

var identityRolesCmd = &cobra.Command{
	Use:   "roles ADDRESS",
	Short: "View the roles held by an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("IdentityRoles")
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.Identity(args[0])
		if err != nil {
			return err
		}

		if len(id.Roles) == 0 {
			fmt.Printf("%s holds no roles.\n", args[0])
			return nil
		}
		for _, r := range id.Roles {
			fmt.Println(r)
		}
		return nil
	},
}

var identityGrantCmd = &cobra.Command{
	Use:   "grant ADDRESS ROLE",
	Short: "Grant a role administratively",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("IdentityGrant")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.GrantRole(caller, args[0], args[1]); err != nil {
			return fmt.Errorf("granting role: %w", err)
		}

		fmt.Printf("Granted %s to %s\n", args[1], args[0])
		return nil
	},
}

var identityRevokeCmd = &cobra.Command{
	Use:   "revoke ADDRESS ROLE",
	Short: "Revoke a role",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("IdentityRevoke")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.RevokeRole(caller, args[0], args[1]); err != nil {
			return fmt.Errorf("revoking role: %w", err)
		}

		fmt.Printf("Revoked %s from %s\n", args[1], args[0])
		return nil
	},
}

// expert command
var expertCmd = &cobra.Command{
	Use:   "expert",
	Short: "Manage the expert directory",
}

var expertRegisterCmd = &cobra.Command{
	Use:   "register ADDRESS SPECIALTY",
	Short: "Enroll a specialist",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("ExpertRegister")
		if err != nil {
			return err
		}
		defer a.Close()

		exp, err := a.RegisterExpert(caller, args[0], args[1])
		if err != nil {
			return fmt.Errorf("registering expert: %w", err)
		}

		fmt.Printf("Expert #%d registered (%s, %s)\n", exp.ID, exp.Address, exp.Specialty)
		return nil
	},
}

var expertListCmd = &cobra.Command{
	Use:   "list SPECIALTY",
	Short: "List experts in a specialty",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ExpertList")
		if err != nil {
			return err
		}
		defer a.Close()

		experts, err := a.ListExperts(args[0])
		if err != nil {
			return err
		}

		if len(experts) == 0 {
			fmt.Println("No experts registered.")
			return nil
		}
		for _, exp := range experts {
			status := "active"
			if !exp.Active {
				status = "inactive"
			}
			fmt.Printf("#%d  %s  %s  %s\n", exp.ID, exp.Address, exp.Specialty, status)
		}
		return nil
	},
}

var expertStatusCmd = &cobra.Command{
	Use:   "status ID",
	Short: "Activate or deactivate an expert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		id, err := app.ParseID(args[0])
		if err != nil {
			return err
		}
		active, _ := cmd.Flags().GetBool("active")
		inactive, _ := cmd.Flags().GetBool("inactive")
		if active == inactive {
			return fmt.Errorf("pass exactly one of --active or --inactive")
		}

		a, err := newApp("ExpertStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetExpertStatus(caller, id, active); err != nil {
			return fmt.Errorf("updating status: %w", err)
		}

		fmt.Printf("Expert #%d updated\n", id)
		return nil
	},
}

var expertSpecialtyCmd = &cobra.Command{
	Use:   "specialty ID SPECIALTY",
	Short: "Move an expert to a different specialty",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		id, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ExpertSpecialty")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.UpdateSpecialty(caller, id, args[1]); err != nil {
			return fmt.Errorf("updating specialty: %w", err)
		}

		fmt.Printf("Expert #%d moved to %s\n", id, args[1])
		return nil
	},
}

var expertShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "View an expert record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ExpertShow")
		if err != nil {
			return err
		}
		defer a.Close()

		exp, err := a.Expert(id)
		if err != nil {
			return err
		}
		score, err := a.Reputation(id)
		if err != nil {
			return err
		}

		status := "active"
		if !exp.Active {
			status = "inactive"
		}
		fmt.Printf("Expert:     #%d\n", exp.ID)
		fmt.Printf("Address:    %s\n", exp.Address)
		fmt.Printf("Specialty:  %s\n", exp.Specialty)
		fmt.Printf("Status:     %s\n", status)
		fmt.Printf("Score:      %d\n", score)
		fmt.Printf("Registered: %s\n", exp.RegisteredAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

// case command
var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Manage consultation cases",
}

var caseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a consultation case",
	RunE: func(cmd *cobra.Command, args []string) error {
		patient, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		dataPath, _ := cmd.Flags().GetString("data")
		consentPath, _ := cmd.Flags().GetString("consent")
		specialty, _ := cmd.Flags().GetString("specialty")
		urgency, _ := cmd.Flags().GetString("urgency")
		expiryDays, _ := cmd.Flags().GetInt("expiry-days")
		if dataPath == "" || specialty == "" {
			return fmt.Errorf("both --data and --specialty are required")
		}

		a, err := newApp("CaseCreate")
		if err != nil {
			return err
		}
		defer a.Close()

		expiry := time.Duration(expiryDays) * 24 * time.Hour
		id, err := a.CreateCase(patient, dataPath, consentPath, specialty, urgency, expiry)
		if err != nil {
			return fmt.Errorf("creating case: %w", err)
		}

		fmt.Printf("Case #%d created\n", id)
		return nil
	},
}

var caseAssignCmd = &cobra.Command{
	Use:   "assign CASE [EXPERT]",
	Short: "Assign an expert to a case",
	Long:  "Assign the given expert to a case. With no expert argument, the highest-scoring qualified expert in the case's specialty is selected.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}
		var expertID int64
		if len(args) == 2 {
			if expertID, err = app.ParseID(args[1]); err != nil {
				return err
			}
		}
		minRep, err := cmd.Flags().GetInt64("min-reputation")
		if err != nil {
			return err
		}

		a, err := newApp("CaseAssign")
		if err != nil {
			return err
		}
		defer a.Close()

		assigned, err := a.AssignExpert(caller, caseID, expertID, minRep)
		if err != nil {
			return fmt.Errorf("assigning expert: %w", err)
		}

		fmt.Printf("Case #%d assigned to expert #%d\n", caseID, assigned)
		return nil
	},
}

var caseDiagnoseCmd = &cobra.Command{
	Use:   "diagnose CASE",
	Short: "Submit a diagnosis for an assigned case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}
		diagnosisPath, _ := cmd.Flags().GetString("file")
		proofPath, _ := cmd.Flags().GetString("proof")
		if diagnosisPath == "" {
			return fmt.Errorf("--file is required")
		}

		a, err := newApp("CaseDiagnose")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SubmitDiagnosis(caller, caseID, diagnosisPath, proofPath); err != nil {
			return fmt.Errorf("submitting diagnosis: %w", err)
		}

		fmt.Printf("Diagnosis recorded for case #%d\n", caseID)
		return nil
	},
}

var caseCloseCmd = &cobra.Command{
	Use:   "close CASE",
	Short: "Close a diagnosed case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("CaseClose")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CloseCase(caller, caseID); err != nil {
			return fmt.Errorf("closing case: %w", err)
		}

		fmt.Printf("Case #%d closed\n", caseID)
		return nil
	},
}

var caseDisputeCmd = &cobra.Command{
	Use:   "dispute CASE",
	Short: "Dispute a diagnosed case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("CaseDispute")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DisputeCase(caller, caseID); err != nil {
			return fmt.Errorf("disputing case: %w", err)
		}

		fmt.Printf("Case #%d disputed\n", caseID)
		return nil
	},
}

var caseShowCmd = &cobra.Command{
	Use:   "show CASE",
	Short: "View a case record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("CaseShow")
		if err != nil {
			return err
		}
		defer a.Close()

		cs, err := a.Case(caseID)
		if err != nil {
			return err
		}

		fmt.Printf("Case:      #%d\n", cs.ID)
		fmt.Printf("Patient:   %s\n", cs.Patient)
		fmt.Printf("Specialty: %s\n", cs.Specialty)
		fmt.Printf("Urgency:   %s\n", cs.Urgency)
		fmt.Printf("Status:    %s\n", cs.Status)
		fmt.Printf("Data:      %x\n", cs.DataRef)
		if !cs.ConsentRef.IsZero() {
			fmt.Printf("Consent:   %x\n", cs.ConsentRef)
		}
		if cs.ExpertID != 0 {
			fmt.Printf("Expert:    #%d\n", cs.ExpertID)
		}
		if !cs.DiagnosisRef.IsZero() {
			fmt.Printf("Diagnosis: %x\n", cs.DiagnosisRef)
		}
		fmt.Printf("Created:   %s\n", cs.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var caseListCmd = &cobra.Command{
	Use:   "list PATIENT",
	Short: "List cases opened by a patient",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("CaseList")
		if err != nil {
			return err
		}
		defer a.Close()

		cases, err := a.CasesByPatient(args[0])
		if err != nil {
			return err
		}

		if len(cases) == 0 {
			fmt.Println("No cases found.")
			return nil
		}
		for _, cs := range cases {
			fmt.Printf("#%d  %-12s  %-8s  %-20s  %s\n",
				cs.ID, cs.Specialty, cs.Urgency, cs.Status,
				cs.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var caseFetchCmd = &cobra.Command{
	Use:   "fetch CASE",
	Short: "Fetch a case's payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, err := actingPrincipal(cmd)
		if err != nil {
			return err
		}
		caseID, err := app.ParseID(args[0])
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("out")
		decrypt, _ := cmd.Flags().GetBool("decrypt")

		var pass string
		if decrypt {
			if pass, err = readPassphrase("Passphrase for the private key: ", false); err != nil {
				return err
			}
		}

		a, err := newApp("CaseFetch")
		if err != nil {
			return err
		}
		defer a.Close()

		out := os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		if err := a.FetchCaseData(caller, caseID, pass, out); err != nil {
			return fmt.Errorf("fetching payload: %w", err)
		}
		return nil
	},
}

// reputation command
var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "View expert reputation",
}

var reputationShowCmd = &cobra.Command{
	Use:   "show EXPERT",
	Short: "View an expert's current score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := app.ParseID(args[0])
		if err != nil {
			return err
		}

		a, err := newApp("ReputationShow")
		if err != nil {
			return err
		}
		defer a.Close()

		score, err := a.Reputation(id)
		if err != nil {
			return err
		}

		fmt.Printf("Expert #%d score: %d\n", id, score)
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list ACTOR",
	Short: "List audit entries for an actor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuditList")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.AuditByActor(args[0])
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("#%d  %-20s  %s  %x\n",
				e.ID, e.Kind, e.LoggedAt.Format("2006-01-02 15:04:05"), e.Ref)
		}
		return nil
	},
}

var auditTotalCmd = &cobra.Command{
	Use:   "total",
	Short: "Print the total number of audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AuditTotal")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.AuditTotal()
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("as", "", "Acting address for the command")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// identity subcommands
	identityCmd.AddCommand(identityRegisterCmd)
	identityRegisterCmd.Flags().String("proof", "", "Path to the proof JSON file")
	identityRegisterCmd.Flags().String("nullifier", "", "Nullifier hash of the credential")
	identityCmd.AddCommand(identityRolesCmd)
	identityCmd.AddCommand(identityGrantCmd)
	identityCmd.AddCommand(identityRevokeCmd)

	// expert subcommands
	expertCmd.AddCommand(expertRegisterCmd)
	expertCmd.AddCommand(expertListCmd)
	expertCmd.AddCommand(expertStatusCmd)
	expertStatusCmd.Flags().Bool("active", false, "Mark the expert active")
	expertStatusCmd.Flags().Bool("inactive", false, "Mark the expert inactive")
	expertCmd.AddCommand(expertSpecialtyCmd)
	expertCmd.AddCommand(expertShowCmd)

	// case subcommands
	caseCmd.AddCommand(caseCreateCmd)
	caseCreateCmd.Flags().String("data", "", "Path to the case payload")
	caseCreateCmd.Flags().String("consent", "", "Path to the consent document")
	caseCreateCmd.Flags().String("specialty", "", "Required specialty")
	caseCreateCmd.Flags().String("urgency", "low", "Case urgency (low, medium, high)")
	caseCreateCmd.Flags().Int("expiry-days", 0, "Days until the payload expires (0 = never)")
	caseCmd.AddCommand(caseAssignCmd)
	caseAssignCmd.Flags().Int64("min-reputation", -1, "Minimum current reputation required of the expert (default: the configured floor)")
	caseCmd.AddCommand(caseDiagnoseCmd)
	caseDiagnoseCmd.Flags().String("file", "", "Path to the diagnosis document")
	caseDiagnoseCmd.Flags().String("proof", "", "Path to supporting evidence")
	caseCmd.AddCommand(caseCloseCmd)
	caseCmd.AddCommand(caseDisputeCmd)
	caseCmd.AddCommand(caseShowCmd)
	caseCmd.AddCommand(caseListCmd)
	caseCmd.AddCommand(caseFetchCmd)
	caseFetchCmd.Flags().String("out", "", "Write the payload to a file instead of stdout")
	caseFetchCmd.Flags().Bool("decrypt", false, "Unlock the private key and decrypt the payload")

	// reputation subcommands
	reputationCmd.AddCommand(reputationShowCmd)

	// audit subcommands
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditTotalCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(identityCmd)
	rootCmd.AddCommand(expertCmd)
	rootCmd.AddCommand(caseCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(auditCmd)
}
