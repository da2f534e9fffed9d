package medzk

import (
	"math/big"

	"medzk-go/internal/model"
)

// ProofVerifier checks a zero-knowledge role claim. It is a pure function of
// its inputs: no state, no side effects. publicInputs is the ordered public
// statement beginning with [role, commitmentHash]; the verifier checks proof
// validity against that statement, not the semantics of the commitment.
//
// Verify fails closed: a structurally malformed proof or input vector is a
// false result, not an error.
type ProofVerifier interface {
	Verify(proof *model.Proof, publicInputs []*big.Int) bool
}
