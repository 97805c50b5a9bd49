package zkp

import (
	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
)

// AuxGenerator is a second, fixed generator H with no known discrete log
// relationship to G that any party can compute, used as the blinding base
// in the signing protocol's commit-reveal anti-rogue-share check (spec.md
// §4.I rounds 5-8, generalizing original_source's Phase5Com1/Decom1/
// Com2/Decom2 exchange). H is derived as hash-to-scalar("...") * G; note
// that this construction makes log_G(H) computable by anyone who hashes the
// same label, which is why H is used only as an auxiliary blinding point
// inside a commit-then-reveal check here, never as a hiding Pedersen
// commitment base relied on for secrecy against a party who already knows
// log_G(H) -- the actual unforgeability guarantee for the final signature
// comes from the combined-signature ECDSA verification in round 8, not
// from H's hiding property. See DESIGN.md for the full discussion of this
// simplification relative to GG18's Figure 7/8 compound proof.
func AuxGenerator() curve.Point {
	h := hashcommit.Challenge("threshold-ecdsa/signing/aux-generator", curve.Order(), []byte("threshold-ecdsa aux generator v1"))
	return curve.NewScalarFromBigInt(h).ActOnBase()
}

// RepresentationProof proves knowledge of (x1, x2) such that
// X = x1*G + x2*H, without revealing x1 or x2 (a standard two-base Schnorr
// / Okamoto representation proof).
type RepresentationProof struct {
	R  curve.Point
	S1 curve.Scalar
	S2 curve.Scalar
}

// ProveRepresentation proves knowledge of (x1, x2) for X = x1*G + x2*H.
func ProveRepresentation(label string, x1, x2 curve.Scalar, X, G, H curve.Point) (RepresentationProof, error) {
	k1, err := randomScalar()
	if err != nil {
		return RepresentationProof{}, err
	}
	defer k1.Zeroize()
	k2, err := randomScalar()
	if err != nil {
		return RepresentationProof{}, err
	}
	defer k2.Zeroize()

	R := G.Mul(k1).Add(H.Mul(k2))
	e := representationChallenge(label, X, R, G, H)

	s1 := k1.Add(e.Mul(x1))
	s2 := k2.Add(e.Mul(x2))
	return RepresentationProof{R: R, S1: s1, S2: s2}, nil
}

// Verify checks the proof against public value X and bases G, H.
func (p RepresentationProof) Verify(label string, X, G, H curve.Point) bool {
	e := representationChallenge(label, X, p.R, G, H)
	lhs := G.Mul(p.S1).Add(H.Mul(p.S2))
	rhs := p.R.Add(X.Mul(e))
	return lhs.Equal(rhs)
}

func representationChallenge(label string, X, R, G, H curve.Point) curve.Scalar {
	xb, _ := X.CompressedBytes()
	rb, _ := R.CompressedBytes()
	gb, _ := G.CompressedBytes()
	hb, _ := H.CompressedBytes()
	c := hashcommit.Challenge(label, curve.Order(), xb, rb, gb, hb)
	return curve.NewScalarFromBigInt(c)
}
