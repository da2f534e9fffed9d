package app

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"medzk-go/internal/model"
)

// ParseRef decodes a 32-byte content ref from hex, with or without a 0x prefix.
func ParseRef(s string) (model.Ref, error) {
	var ref model.Ref
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return ref, fmt.Errorf("invalid ref %q: %w", s, err)
	}
	if len(b) != len(ref) {
		return ref, fmt.Errorf("invalid ref: expected %d bytes, got %d", len(ref), len(b))
	}
	copy(ref[:], b)
	return ref, nil
}

// ParseRole maps a role name or numeric code to a Role.
func ParseRole(s string) (model.Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient", "1":
		return model.RolePatient, nil
	case "doctor", "2":
		return model.RoleDoctor, nil
	case "expert", "3":
		return model.RoleExpert, nil
	case "governance", "4":
		return model.RoleGovernance, nil
	default:
		return model.RoleNone, fmt.Errorf("unknown role: %s", s)
	}
}

// ParseSpecialty maps a specialty name or numeric code to a Specialty.
func ParseSpecialty(s string) (model.Specialty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cardiology", "1":
		return model.SpecialtyCardiology, nil
	case "neurology", "2":
		return model.SpecialtyNeurology, nil
	case "oncology", "3":
		return model.SpecialtyOncology, nil
	case "radiology", "4":
		return model.SpecialtyRadiology, nil
	default:
		return 0, fmt.Errorf("unknown specialty: %s", s)
	}
}

// ParseUrgency maps an urgency name or numeric code to an Urgency.
func ParseUrgency(s string) (model.Urgency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return model.UrgencyLow, nil
	case "medium", "1":
		return model.UrgencyMedium, nil
	case "high", "2":
		return model.UrgencyHigh, nil
	default:
		return 0, fmt.Errorf("unknown urgency: %s", s)
	}
}

// proofFile is the on-disk proof format as emitted by the prover toolchain:
// decimal or 0x-hex field elements for the three proof points plus the
// public inputs.
type proofFile struct {
	A      [2]string    `json:"a"`
	B      [2][2]string `json:"b"`
	C      [2]string    `json:"c"`
	Inputs []string     `json:"inputs"`
}

// LoadProofFile reads a proof tuple and its public inputs from a JSON file.
func LoadProofFile(path string) (*model.Proof, []*big.Int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading proof file: %w", err)
	}

	var pf proofFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil, fmt.Errorf("parsing proof file: %w", err)
	}

	proof := &model.Proof{}
	for i := 0; i < 2; i++ {
		if proof.A[i], err = parseFieldElement(pf.A[i]); err != nil {
			return nil, nil, fmt.Errorf("proof point a[%d]: %w", i, err)
		}
		if proof.C[i], err = parseFieldElement(pf.C[i]); err != nil {
			return nil, nil, fmt.Errorf("proof point c[%d]: %w", i, err)
		}
		for j := 0; j < 2; j++ {
			if proof.B[i][j], err = parseFieldElement(pf.B[i][j]); err != nil {
				return nil, nil, fmt.Errorf("proof point b[%d][%d]: %w", i, j, err)
			}
		}
	}

	inputs := make([]*big.Int, len(pf.Inputs))
	for i, s := range pf.Inputs {
		if inputs[i], err = parseFieldElement(s); err != nil {
			return nil, nil, fmt.Errorf("public input %d: %w", i, err)
		}
	}

	return proof, inputs, nil
}

func parseFieldElement(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty field element")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid field element: %s", s)
	}
	return v, nil
}

// ParseID parses a positive decimal identifier.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}
