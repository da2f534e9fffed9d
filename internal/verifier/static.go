package verifier

import (
	"math/big"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// StaticVerifier accepts any structurally well-formed proof tuple. It exists
// for development and tests, where provers submit placeholder tuples; it
// still rejects malformed shapes so fail-closed paths stay exercised.
// Never configure it in a deployment.
type StaticVerifier struct{}

var _ medzk.ProofVerifier = (*StaticVerifier)(nil)

func NewStaticVerifier() *StaticVerifier { return &StaticVerifier{} }

func (*StaticVerifier) Verify(proof *model.Proof, publicInputs []*big.Int) bool {
	if !proof.WellFormed() || len(publicInputs) < 2 {
		return false
	}
	for _, in := range publicInputs {
		if in == nil {
			return false
		}
	}
	return true
}
