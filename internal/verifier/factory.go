package verifier

import (
	"fmt"

	"medzk-go/internal/config"
	"medzk-go/internal/medzk"
)

// NewVerifierFromConfig creates a ProofVerifier based on the configuration type.
func NewVerifierFromConfig(cfg config.VerifierConfig) (medzk.ProofVerifier, error) {
	switch cfg.Type {
	case "gnark", "":
		if cfg.VerifyingKeyPath == "" {
			return nil, fmt.Errorf("verifying_key_path required for gnark verifier")
		}
		return NewGnarkVerifier(cfg.VerifyingKeyPath)
	case "static":
		return NewStaticVerifier(), nil
	default:
		return nil, fmt.Errorf("unknown verifier type: %q", cfg.Type)
	}
}
