// Composite-modulus discrete-log proof, ported from original_source's
// algorithms/src/dlog_proof.rs (D. Pointcheval, "Composite discrete
// logarithm and secure authentication", section 3.2). Used to build
// ZkpPublicSetup's h1/h2 linking proof; the MtA range proofs in mta.go and
// mtawc.go do not use it.
package zkp

import (
	"math/big"

	"github.com/vaultmesh/threshold-ecdsa/internal/bigint"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
)

// CompositeDLogSecurityParam is the statistical security parameter added to
// the sampling range for the proof's nonce r, matching original_source's
// `security_param` argument to DlogProof::create.
const CompositeDLogSecurityParam = 128

// compositeDLogSalt domain-separates this proof from every other use of
// hashcommit.Challenge; chosen to mirror (without reproducing verbatim) the
// role original_source's ING_TSS_DLOG constant plays as a salted label.
const compositeDLogSalt = "threshold-ecdsa/composite-dlog/v1"

// CompositeDLogProof proves knowledge of s such that V = g^s mod N, for an N
// of unknown (to the verifier) order. This is exactly the proof needed to
// show that h2 = h1^alpha mod N~ (or vice-versa) without revealing alpha.
type CompositeDLogProof struct {
	Y *big.Int
	C *big.Int
}

// ProveCompositeDLog proves knowledge of s, the discrete log of V to base g
// modulo N, where maxSecretBits bounds the bit length of s (the prover
// samples its nonce from a range maxSecretBits + digest-size + security-param
// bits wide, so that y = r - c*s statistically hides s regardless of its
// exact bit length).
func ProveCompositeDLog(n, g, v, s *big.Int, maxSecretBits int) CompositeDLogProof {
	logR := maxSecretBits + hashcommit.Size*8 + CompositeDLogSecurityParam
	R := new(big.Int).Lsh(big.NewInt(1), uint(logR))
	rBig, err := bigint.SampleBelow(R)
	if err != nil {
		panic("zkp: composite dlog proof RNG failure: " + err.Error())
	}
	r := bigint.NewSecretNat(rBig, logR+1)
	defer r.Zeroize()

	x := bigint.ModPow(g, r.Big(), n)
	c := compositeDLogChallenge(n, g, v, x)

	y := new(big.Int).Sub(r.Big(), new(big.Int).Mul(c, s))
	return CompositeDLogProof{Y: y, C: c}
}

// Verify checks the proof against modulus n, base g and claimed value v.
func (p CompositeDLogProof) Verify(n, g, v *big.Int) bool {
	gy := bigint.SignedModPow(g, p.Y, n)
	vc := bigint.ModPow(v, p.C, n)
	x := new(big.Int).Mod(new(big.Int).Mul(gy, vc), n)

	c := compositeDLogChallenge(n, g, v, x)
	return c.Cmp(p.C) == 0
}

func compositeDLogChallenge(n, g, v, x *big.Int) *big.Int {
	bound := new(big.Int).Lsh(big.NewInt(1), hashcommit.Size*8)
	return hashcommit.Challenge(compositeDLogSalt, bound, n.Bytes(), g.Bytes(), v.Bytes(), x.Bytes())
}
