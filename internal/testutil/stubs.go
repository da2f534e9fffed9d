package testutil

import (
	"math/big"

	"medzk-go/internal/audit"
	"medzk-go/internal/content"
	"medzk-go/internal/encryption"
	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// StubVerifier reports a scripted verdict for every proof.
type StubVerifier struct {
	Accept bool
}

func (v *StubVerifier) Verify(*model.Proof, []*big.Int) bool {
	return v.Accept
}

// NewTestContentStore creates an in-memory content store with a
// deterministic encryptor.
func NewTestContentStore(clock medzk.Clock) medzk.ContentStore {
	return content.NewMemoryStore(encryption.NewTestEncryptor(), clock)
}

// NewTestAuditLog creates an in-memory audit log.
func NewTestAuditLog(clock medzk.Clock) medzk.AuditLog {
	return audit.NewMemoryLog(clock)
}

// Proof returns a well-formed proof tuple with the public inputs
// [role, commitment]. The tuple carries no cryptographic meaning; pair it
// with a StubVerifier.
func Proof(role model.Role) (*model.Proof, []*big.Int) {
	one := big.NewInt(1)
	p := &model.Proof{
		A: [2]*big.Int{one, one},
		B: [2][2]*big.Int{{one, one}, {one, one}},
		C: [2]*big.Int{one, one},
	}
	inputs := []*big.Int{big.NewInt(int64(role)), big.NewInt(42)}
	return p, inputs
}
