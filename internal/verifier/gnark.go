package verifier

import (
	"fmt"
	"math/big"
	"os"

	bn254 "github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	groth16 "github.com/consensys/gnark/backend/groth16/bn254"

	"medzk-go/internal/medzk"
	"medzk-go/internal/model"
)

// GnarkVerifier checks Groth16 proofs over BN254 against a verifying key
// produced by the role-claim circuit's trusted setup. The circuit itself is
// external; this side only consumes its verifying key.
type GnarkVerifier struct {
	vk *groth16.VerifyingKey
}

var _ medzk.ProofVerifier = (*GnarkVerifier)(nil)

// NewGnarkVerifier loads the verifying key from path.
func NewGnarkVerifier(path string) (*GnarkVerifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening verifying key: %w", err)
	}
	defer f.Close()

	vk := new(groth16.VerifyingKey)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("reading verifying key from %s: %w", path, err)
	}
	return &GnarkVerifier{vk: vk}, nil
}

// Verify checks the proof tuple against the public inputs. Any structural
// defect (missing coordinates, a point off the curve or outside its
// subgroup, a short input vector) is a plain reject, never an error.
func (v *GnarkVerifier) Verify(proof *model.Proof, publicInputs []*big.Int) bool {
	if !proof.WellFormed() || len(publicInputs) < 2 {
		return false
	}

	var p groth16.Proof
	p.Ar.X.SetBigInt(proof.A[0])
	p.Ar.Y.SetBigInt(proof.A[1])
	p.Bs.X.A0.SetBigInt(proof.B[0][0])
	p.Bs.X.A1.SetBigInt(proof.B[0][1])
	p.Bs.Y.A0.SetBigInt(proof.B[1][0])
	p.Bs.Y.A1.SetBigInt(proof.B[1][1])
	p.Krs.X.SetBigInt(proof.C[0])
	p.Krs.Y.SetBigInt(proof.C[1])

	if !pointsValid(&p.Ar, &p.Krs, &p.Bs) {
		return false
	}

	w, ok := publicWitness(publicInputs)
	if !ok {
		return false
	}

	return groth16.Verify(&p, v.vk, w) == nil
}

// pointsValid reports whether the reconstructed points are on their curves
// and in the prime-order subgroups.
func pointsValid(ar, krs *bn254.G1Affine, bs *bn254.G2Affine) bool {
	return ar.IsInSubGroup() && krs.IsInSubGroup() && bs.IsInSubGroup()
}

func publicWitness(inputs []*big.Int) (fr.Vector, bool) {
	w := make(fr.Vector, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, false
		}
		w[i].SetBigInt(in)
	}
	return w, true
}
