// Package sign implements the GG18 threshold-signing protocol (spec.md
// §4.I, nine rounds there, folded into eight here): given a LocalKey from a prior keygen run and a signing
// committee of exactly t+1 members, every member converts its k_i, gamma_i
// nonce shares into the combined nonce R via pairwise MtA exchanges, then
// reveals enough to recombine a standard ECDSA signature without ever
// reconstructing the group secret key.
//
// Structurally this follows the teacher's internal/protocol/sign package's
// round numbering (round_1..round_5, its Phase2/Phase3/Phase4/Phase5
// comments), generalized onto internal/round's generic driver and
// internal/zkp's MtA/MtA-with-check/Schnorr building blocks instead of the
// teacher's inline, partially-unchecked range-proof stand-ins. See
// DESIGN.md for how this implementation's rounds 5-8 (the HomoElGamal
// consistency check spec.md describes) map onto the commit-reveal
// primitives in internal/zkp/representation.go.
package sign

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/paillier"
	"github.com/vaultmesh/threshold-ecdsa/internal/vss"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
	"github.com/vaultmesh/threshold-ecdsa/protocols/keygen"
)

// Msg is the single message-body type flowing through the signing driver;
// exactly one of the round-tagged payload fields is populated.
type Msg struct {
	Round1 *Round1Payload
	Round2 *Round2Payload
	Round3 *Round3Payload
	Round4 *Round4Payload
	Round5 *Round5Payload
	Round6 *Round6Payload
	Round7 *Round7Payload
	Round8 *Round8Payload
}

// Round1Payload broadcasts a commitment to Gamma_i = gamma_i*G and unicasts
// one MtA-A (Enc_i(k_i) + range proof) to every other committee member.
type Round1Payload struct {
	GammaCommitC []byte
	MessageA     *zkp.MessageA // present only on the unicast copy addressed to the recipient
}

// Round2Payload carries Bob's two MtA responses to the recipient's round-1
// MessageA: the k*gamma conversion and the k*w-with-check conversion.
type Round2Payload struct {
	GammaResponse *zkp.MessageB
	WResponse     *zkp.MessageBWithCheck
}

// Round3Payload broadcasts this party's delta share.
type Round3Payload struct {
	Delta []byte // scalar, big-endian
}

// Round4Payload decommits Gamma_i and proves knowledge of gamma_i.
type Round4Payload struct {
	GammaCommitD []byte
	GammaBytes   []byte // compressed point
	ProofR       []byte
	ProofS       []byte
}

// Round5Payload broadcasts a hash commitment to V_i = sigma_i*R + l_i*H.
type Round5Payload struct {
	CommitC []byte
}

// Round6Payload decommits V_i and proves knowledge of (sigma_i, l_i).
type Round6Payload struct {
	CommitD []byte
	VBytes  []byte // compressed point
	ProofR  []byte
	ProofS1 []byte
	ProofS2 []byte
}

// Round7Payload broadcasts a hash commitment to the pair (s_i, l_i) that
// will be opened in round 8, so no party can choose its final share after
// observing anyone else's.
type Round7Payload struct {
	CommitC []byte
}

// Round8Payload opens round 7's commitment, revealing s_i and l_i.
type Round8Payload struct {
	CommitD []byte
	SBytes  []byte
	LBytes  []byte
}

// Signature is a standard ECDSA signature over secp256k1.
type Signature struct {
	R curve.Scalar
	S curve.Scalar
}

// Verify checks sig against public key Y and message hash m (reduced mod
// q), per spec.md §3: r = x(R) mod q, s = k^-1(H(m) + r*x) mod q.
func (sig Signature) Verify(Y curve.Point, m curve.Scalar) bool {
	if sig.R.IsZero() || sig.S.IsZero() {
		return false
	}
	sInv := sig.S.Invert()
	u1 := m.Mul(sInv)
	u2 := sig.R.Mul(sInv)
	point := u1.ActOnBase().Add(Y.Mul(u2))
	if point.IsIdentity() {
		return false
	}
	return point.XCoordMod().Equal(sig.R)
}

func randomScalar() (curve.Scalar, error) {
	var buf [40]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return curve.Scalar{}, err
	}
	return curve.NewScalarFromBigInt(new(big.Int).SetBytes(buf[:])), nil
}

func bigIntFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func containsIndex(xs []party.Index, x party.Index) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// committeeIndex returns the VSS x-coordinate a member held during the
// keygen run that produced key, i.e. its 1-based position in key's full
// n-party committee, not its position within the (possibly smaller)
// signing committee.
func committeeIndex(key *keygen.LocalKey, who party.Index) curve.Scalar {
	for i, m := range key.Committee {
		if m == who {
			return curve.IndexScalar(i + 1)
		}
	}
	return curve.Scalar{}
}

// lagrangeCoefficients computes each signer's Lagrange coefficient for
// interpolation at x=0, using VSS x-coordinates derived from the full
// keygen committee (spec.md §4.I: "Lagrange coefficients are computed from
// the VSS x-coordinates of members of S").
func lagrangeCoefficients(key *keygen.LocalKey, signers []party.Index) map[party.Index]curve.Scalar {
	shares := make([]vss.Share, len(signers))
	for i, m := range signers {
		shares[i] = vss.Share{Index: committeeIndex(key, m)}
	}
	out := make(map[party.Index]curve.Scalar, len(signers))
	for i, m := range signers {
		out[m] = vss.LagrangeCoefficient(shares, i)
	}
	return out
}

// publicShare recomputes peer j's implied public share point x_j*G from
// key's aggregated keygen-time Feldman commitments, without ever learning
// x_j. Used to validate an MtA-with-check's claimed B = w_j*G.
func publicShare(key *keygen.LocalKey, lambda curve.Scalar, who party.Index) curve.Point {
	perDealer := make([][]curve.Point, 0, len(key.FeldmanC))
	for _, c := range key.FeldmanC {
		perDealer = append(perDealer, c)
	}
	aggregate := vss.AggregateCommitments(perDealer)
	Xj := vss.EvaluateCommitments(aggregate, committeeIndex(key, who))
	return Xj.Mul(lambda)
}

// session holds everything every round of a single signing run shares:
// the local key material, the agreed committee, and the message being
// signed. Built once by round1 and threaded through every later round via
// its predecessor, the same chaining pattern protocols/keygen uses.
type session struct {
	self      party.Index
	key       *keygen.LocalKey
	committee []party.Index // canonical order, |committee| == key.Params.Signers()
	msgHash   curve.Scalar
	lambda    map[party.Index]curve.Scalar
	wSelf     curve.Scalar // lambda_self * key.ShareXi
	aux       curve.Point  // AuxGenerator(), the second commit-reveal base
	logLabel  string
}

func newSession(self party.Index, key *keygen.LocalKey, committee []party.Index, msgHash [32]byte) (*session, error) {
	if len(committee) != key.Params.Signers() {
		return nil, fmt.Errorf("sign: committee must have exactly %d members, got %d", key.Params.Signers(), len(committee))
	}
	if !containsIndex(committee, self) {
		return nil, fmt.Errorf("sign: self is not a member of the signing committee")
	}
	ordered := party.IDs(committee)
	lambda := lagrangeCoefficients(key, ordered)
	wSelf := lambda[self].Mul(key.ShareXi)
	return &session{
		self:      self,
		key:       key,
		committee: ordered,
		msgHash:   curve.NewScalarFromBigInt(new(big.Int).SetBytes(msgHash[:])),
		lambda:    lambda,
		wSelf:     wSelf,
		aux:       zkp.AuxGenerator(),
		logLabel:  "sign",
	}, nil
}

func (s *session) peers() []party.Index {
	out := make([]party.Index, 0, len(s.committee)-1)
	for _, m := range s.committee {
		if m != s.self {
			out = append(out, m)
		}
	}
	return out
}

func (s *session) paillierPK(who party.Index) *paillier.PublicKey {
	return s.key.PaillierPK[who]
}

func (s *session) setupOf(who party.Index) zkp.PublicSetup {
	return s.key.Setups[who]
}

const (
	gammaCommitLabel = "sign/r1/gamma-commit"
	gammaDlogLabel   = "sign/r4/gamma-dlog"
	vCommitLabel     = "sign/r5/v-commit"
	vRepLabel        = "sign/r6/v-representation"
	finalCommitLabel = "sign/r7/final-commit"
)
