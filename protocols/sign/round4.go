package sign

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vaultmesh/threshold-ecdsa/internal/curve"
	"github.com/vaultmesh/threshold-ecdsa/internal/hashcommit"
	"github.com/vaultmesh/threshold-ecdsa/internal/round"
	"github.com/vaultmesh/threshold-ecdsa/internal/zkp"
	"github.com/vaultmesh/threshold-ecdsa/party"
)

// round4 decommits Gamma_i with a Schnorr proof of knowledge of gamma_i,
// then combines every committee member's Gamma into R = delta^-1 * sum(Gamma)
// and derives r = x(R) mod q (spec.md §4.I Phase 4).
type round4 struct {
	r3    *round3
	delta curve.Scalar

	R curve.Point
	r curve.Scalar

	received map[party.Index]curve.Point
}

func newRound4(r3 *round3, delta curve.Scalar) *round4 {
	return &round4{r3: r3, delta: delta, received: map[party.Index]curve.Point{}}
}

func (r *round4) Number() int { return 4 }

// Zeroize wipes the recombined delta and the signature component r, plus round 3's.
func (r *round4) Zeroize() {
	r.delta.Zeroize()
	r.r.Zeroize()
	r.r3.Zeroize()
}

func (r *round4) Start() ([]round.Msg[Msg], error) {
	r1 := r.r3.r2.r1

	gammaBytes, err := r1.Gamma.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round4: compressing Gamma: %w", err)
	}
	proof, err := zkp.ProveSchnorr(gammaDlogLabel, r1.gamma, r1.Gamma)
	if err != nil {
		return nil, fmt.Errorf("sign round4: proving knowledge of gamma: %w", err)
	}
	proofR, err := proof.R.CompressedBytes()
	if err != nil {
		return nil, fmt.Errorf("sign round4: compressing proof commitment: %w", err)
	}

	return []round.Msg[Msg]{{
		From: r1.sess.self, Broadcast: true, Round: 4,
		Body: Msg{Round4: &Round4Payload{
			GammaCommitD: r1.commit.D,
			GammaBytes:   gammaBytes,
			ProofR:       proofR,
			ProofS:       proof.S.Bytes(),
		}},
	}}, nil
}

func (r *round4) IsMessageExpected(from party.Index, body Msg) bool {
	return body.Round4 != nil && containsIndex(r.r3.r2.r1.sess.peers(), from)
}

func (r *round4) IsInputComplete() bool {
	return len(r.received) == len(r.r3.r2.r1.sess.peers())
}

func (r *round4) Consume(from party.Index, body Msg) error {
	r1 := r.r3.r2.r1
	commitC := r1.receivedGammaCommit[from]
	if !hashcommit.Verify(gammaCommitLabel, commitC, body.Round4.GammaCommitD, body.Round4.GammaBytes) {
		return fmt.Errorf("sign round4: Gamma decommitment from %s does not match round-1 commitment", from)
	}
	Gamma, err := curve.PointFromCompressed(body.Round4.GammaBytes)
	if err != nil {
		return fmt.Errorf("sign round4: decoding Gamma from %s: %w", from, err)
	}
	R, err := curve.PointFromCompressed(body.Round4.ProofR)
	if err != nil {
		return fmt.Errorf("sign round4: decoding proof commitment from %s: %w", from, err)
	}
	proof := zkp.SchnorrProof{R: R, S: curve.NewScalarFromBigInt(new(big.Int).SetBytes(body.Round4.ProofS))}
	if !proof.Verify(gammaDlogLabel, Gamma) {
		return fmt.Errorf("sign round4: gamma knowledge proof from %s failed", from)
	}
	r.received[from] = Gamma
	return nil
}

func (r *round4) Finalize() (round.Transition[Msg, Signature], error) {
	r1 := r.r3.r2.r1
	sum := r1.Gamma
	for _, g := range r.received {
		sum = sum.Add(g)
	}
	deltaInv := r.delta.Invert()
	R := sum.Mul(deltaInv)
	if R.IsIdentity() {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round4: combined nonce point R is the identity"))), nil
	}
	r.R = R
	r.r = R.XCoordMod()
	if r.r.IsZero() {
		return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round4: derived signature component r is zero"))), nil
	}
	return round.ToNextRound[Msg, Signature](newRound5(r)), nil
}

func (r *round4) Timeout() time.Duration { return 0 }

func (r *round4) TimeoutOutcome() round.Transition[Msg, Signature] {
	return round.ToFault[Msg, Signature](round.NewFault(fmt.Errorf("sign round4: timed out waiting for Gamma decommitments")))
}
