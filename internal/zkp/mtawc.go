// MtA-with-check: the variant of the range proof above that additionally
// binds the Paillier-encrypted product to a public curve point B = b*G
// (spec.md §4.E: "Additive-check variant additionally binds B = b·G so
// signing can verify α + β = a·b opens to the agreed committed b"). Used by
// the signing protocol's k_i*w_j conversion, where w_j is a party's
// Lagrange-adjusted signing share and B lets every other party confirm
// Bob's w_j matches the value implied by the keygen-time Feldman
// commitments before trusting the resulting additive share.
//
// This extends RangeProof's sigma-protocol with one more response equation
// sharing the same witness m: alongside the existing Paillier/Pedersen
// checks, the prover additionally commits to T = alpha*G (alpha is already
// sampled and bound into s1 = e*m + alpha by ProveRange) and the verifier
// checks s1*G == T + e*B. Since s1 mod q already equals e*m + alpha mod q,
// this reuses the exact same exponent the Paillier/Pedersen checks bind to
// m, so a single consistent m = b satisfies all three equations at once.
package zkp

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/vaultmesh/threshold-ecdsa/internal/bigint"
	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
)

const mtaCheckSalt = "threshold-ecdsa/mta-range-proof-with-check/v1"

// CheckedRangeProof is a RangeProof extended with a curve-point binding term
// T, so Verify can additionally confirm the proof's hidden exponent m is the
// discrete log of a publicly claimed point B.
type CheckedRangeProof struct {
	RangeProof
	T curve.Point
}

// ProveCheckedRange behaves like ProveRange but additionally proves that m
// (reduced mod q) is the discrete log of B = m*G.
func ProveCheckedRange(pk *paillier.PublicKey, setup PublicSetup, m curve.Scalar, r, c *big.Int) (CheckedRangeProof, error) {
	q3 := qCubed()
	extra := uint(rangeStatisticalSecurity)
	mBig := m.BigInt()

	alphaBound := new(big.Int).Lsh(q3, extra)
	alpha, err := bigint.SampleBelow(alphaBound)
	if err != nil {
		return CheckedRangeProof{}, err
	}

	beta, err := sampleUnitMod(pk.N)
	if err != nil {
		return CheckedRangeProof{}, err
	}

	gammaBound := new(big.Int).Mul(q3, setup.NTilde)
	gammaBound.Lsh(gammaBound, extra)
	gamma, err := bigint.SampleBelow(gammaBound)
	if err != nil {
		return CheckedRangeProof{}, err
	}

	rhoBound := new(big.Int).Mul(curve.Order(), setup.NTilde)
	rhoBound.Lsh(rhoBound, extra)
	rho, err := bigint.SampleBelow(rhoBound)
	if err != nil {
		return CheckedRangeProof{}, err
	}

	z := setup.CommitExponent(mBig, rho)
	w := setup.CommitExponent(alpha, gamma)
	T := curve.NewScalarFromBigInt(alpha).ActOnBase()

	u, err := pk.EncryptWithR(new(big.Int).Mod(alpha, pk.N), beta)
	if err != nil {
		return CheckedRangeProof{}, fmt.Errorf("zkp: checked range proof u term: %w", err)
	}

	e := checkedRangeChallenge(pk.N, setup, c, z, u, w, T)

	s := new(big.Int).Mul(bigint.ModPow(r, e, pk.N), beta)
	s.Mod(s, pk.N)

	s1 := new(big.Int).Add(new(big.Int).Mul(e, mBig), alpha)
	s2 := new(big.Int).Add(new(big.Int).Mul(e, rho), gamma)

	return CheckedRangeProof{
		RangeProof: RangeProof{Z: z, U: u, W: w, S: s, S1: s1, S2: s2},
		T:          T,
	}, nil
}

// Verify checks the proof against ciphertext c and the claimed point B.
func (p CheckedRangeProof) Verify(pk *paillier.PublicKey, setup PublicSetup, c *big.Int, B curve.Point) error {
	if p.Z == nil || p.U == nil || p.W == nil || p.S == nil || p.S1 == nil || p.S2 == nil {
		return errors.New("zkp: incomplete checked range proof")
	}

	q3 := qCubed()
	bound := new(big.Int).Lsh(q3, rangeStatisticalSecurity+1)
	if p.S1.CmpAbs(bound) > 0 {
		return fmt.Errorf("zkp: checked range proof s1 out of bound: %w", ErrInvalidProof)
	}

	e := checkedRangeChallenge(pk.N, setup, c, p.Z, p.U, p.W, p.T)

	gs1, err := pk.EncryptWithR(new(big.Int).Mod(p.S1, pk.N), big.NewInt(1))
	if err != nil {
		return fmt.Errorf("zkp: checked range proof verification encode: %w", err)
	}
	lhs := new(big.Int).Mul(gs1, bigint.ModPow(p.S, pk.N, pk.N2))
	lhs.Mod(lhs, pk.N2)
	rhs := new(big.Int).Mul(p.U, bigint.ModPow(c, e, pk.N2))
	rhs.Mod(rhs, pk.N2)
	if lhs.Cmp(rhs) != 0 {
		return fmt.Errorf("zkp: checked range proof Paillier consistency check failed: %w", ErrInvalidProof)
	}

	commitLHS := setup.CommitExponent(p.S1, p.S2)
	commitRHS := new(big.Int).Mul(p.W, bigint.SignedModPow(p.Z, e, setup.NTilde))
	commitRHS.Mod(commitRHS, setup.NTilde)
	if commitLHS.Cmp(commitRHS) != 0 {
		return fmt.Errorf("zkp: checked range proof commitment consistency check failed: %w", ErrInvalidProof)
	}

	eScalar := curve.NewScalarFromBigInt(e)
	s1Scalar := curve.NewScalarFromBigInt(p.S1)
	lhsPoint := s1Scalar.ActOnBase()
	rhsPoint := p.T.Add(B.Mul(eScalar))
	if !lhsPoint.Equal(rhsPoint) {
		return fmt.Errorf("zkp: checked range proof point binding failed: %w", ErrInvalidProof)
	}
	return nil
}

func checkedRangeChallenge(n *big.Int, setup PublicSetup, c, z, u, w *big.Int, T curve.Point) *big.Int {
	tb, _ := T.CompressedBytes()
	return hashcommit.Challenge(mtaCheckSalt, curve.Order(),
		n.Bytes(), setup.NTilde.Bytes(), setup.H1.Bytes(), setup.H2.Bytes(),
		c.Bytes(), z.Bytes(), u.Bytes(), w.Bytes(), tb)
}

// MessageBWithCheck is Bob's response in an MtA-with-check exchange: the
// usual encrypted-product ciphertext and range proof, plus the public point
// B = b*G so the original Alice can confirm Bob used the b she expects
// (e.g. a Lagrange-adjusted signing share whose public image she can
// recompute from keygen's Feldman commitments) rather than some other
// value that still happens to satisfy the Paillier/Pedersen equations.
type MessageBWithCheck struct {
	C     *big.Int
	Proof CheckedRangeProof
	B     curve.Point
}

// NewMessageBWithCheck performs Bob's half of an MtA-with-check exchange
// for secret b, returning the message to send to Alice and Bob's own
// additive share beta = -beta' mod q.
func NewMessageBWithCheck(pk *paillier.PublicKey, setup PublicSetup, msgA MessageA, b curve.Scalar) (MessageBWithCheck, curve.Scalar, error) {
	betaPrime, err := bigint.SampleBelow(pk.N)
	if err != nil {
		return MessageBWithCheck{}, curve.Scalar{}, err
	}

	cB := pk.Mul(msgA.C, b.BigInt())
	encBetaPrime, r, err := pk.Encrypt(betaPrime)
	if err != nil {
		return MessageBWithCheck{}, curve.Scalar{}, err
	}
	cB = pk.Add(cB, encBetaPrime)

	proof, err := ProveCheckedRange(pk, setup, b, r, cB)
	if err != nil {
		return MessageBWithCheck{}, curve.Scalar{}, err
	}

	beta := curve.NewScalarFromBigInt(betaPrime).Negate()
	return MessageBWithCheck{C: cB, Proof: proof, B: b.ActOnBase()}, beta, nil
}

// Verify checks msg's checked range proof against Alice's Paillier key,
// trusted commitment parameters, and the point msg.B carried in the
// message. It does not compare msg.B with any expected value; the caller
// must check msg.B against the point it derives from public keygen data.
func (msg MessageBWithCheck) Verify(pk *paillier.PublicKey, setup PublicSetup) error {
	if err := pk.ValidateCiphertext(msg.C); err != nil {
		return err
	}
	return msg.Proof.Verify(pk, setup, msg.C, msg.B)
}

// OpenChecked decrypts msg under Alice's private key, exactly like Open.
func OpenChecked(priv *paillier.PrivateKey, msg MessageBWithCheck) (curve.Scalar, error) {
	plain, err := priv.Decrypt(msg.C)
	if err != nil {
		return curve.Scalar{}, err
	}
	return curve.NewScalarFromBigInt(plain), nil
}
